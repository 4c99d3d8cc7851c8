package expense_test

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/shopspring/decimal"

	expenseDatamodel "github.com/frahmantamala/payroll-admin/internal/core/datamodel/expense"
	"github.com/frahmantamala/payroll-admin/internal/expense"
)

var _ = Describe("CreateExpenseDTO", func() {
	var dto expense.CreateExpenseDTO

	BeforeEach(func() {
		dto = expense.CreateExpenseDTO{
			EmployeeID:    4,
			Description:   "conference travel",
			TotalAmount:   decimal.NewFromInt(100),
			ExpenseDate:   time.Now().UTC().AddDate(0, 0, -1),
			PayrollEffect: expenseDatamodel.PayrollEffectDeductInInstallments,
		}
	})

	It("accepts whole-cent amounts", func() {
		amount := decimal.RequireFromString("33.34")
		dto.InstallmentAmount = &amount
		Expect(dto.Validate()).To(Succeed())
	})

	It("accepts trailing zeros past the cents", func() {
		dto.TotalAmount = decimal.RequireFromString("100.000")
		Expect(dto.Validate()).To(Succeed())
	})

	It("rejects a total with sub-cent digits", func() {
		dto.TotalAmount = decimal.RequireFromString("100.005")
		err := dto.Validate()
		Expect(err).To(HaveOccurred())
		Expect(err.Error()).To(ContainSubstring("total_amount must have at most 2 decimal places"))
	})

	It("rejects an installment amount with sub-cent digits", func() {
		amount := decimal.RequireFromString("33.335")
		dto.InstallmentAmount = &amount
		err := dto.Validate()
		Expect(err).To(HaveOccurred())
		Expect(err.Error()).To(ContainSubstring("installment_amount must have at most 2 decimal places"))
	})
})
