package batch

// ItemResult reports the outcome of one item in a batch operation.
type ItemResult struct {
	ID      int64  `json:"id"`
	Success bool   `json:"success"`
	Skipped bool   `json:"skipped,omitempty"`
	Message string `json:"message"`
}

// Result never carries an error for an individual item past the batch
// boundary: SuccessCount + FailedCount always equals len(Items).
type Result struct {
	SuccessCount int          `json:"success_count"`
	FailedCount  int          `json:"failed_count"`
	Items        []ItemResult `json:"items"`
}

func New(size int) *Result {
	return &Result{Items: make([]ItemResult, 0, size)}
}

func (r *Result) Succeed(id int64, message string) {
	r.SuccessCount++
	r.Items = append(r.Items, ItemResult{ID: id, Success: true, Message: message})
}

func (r *Result) Skip(id int64, message string) {
	r.SuccessCount++
	r.Items = append(r.Items, ItemResult{ID: id, Success: true, Skipped: true, Message: message})
}

func (r *Result) Fail(id int64, err error) {
	r.FailedCount++
	r.Items = append(r.Items, ItemResult{ID: id, Success: false, Message: err.Error()})
}

func (r *Result) Total() int {
	return len(r.Items)
}
