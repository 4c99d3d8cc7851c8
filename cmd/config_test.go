package cmd

import (
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

const testConfig = `
http_server:
  port: 8080
  allowed_origins: "https://hr.example.com"
  read_header_timeout: 5s
  read_timeout: 15s
database:
  source: postgres://localhost:5432/payroll_admin
  max_open_conns: 10
  max_idle_conns: 5
observability:
  logging:
    level: info
    format: json
deduction:
  default_max_amount: "2500.00"
  default_percentage: "50"
accounting:
  base_url: https://accounting.example.com
device:
  min_interval_minutes: 20
sync:
  max_retries: 4
  retry_base_delay: 2m
  scheduled_interval: 1h
kafka:
  enabled: true
  brokers:
    - kafka-1:9092
    - kafka-2:9092
  topic: payroll-admin.events
`

var _ = Describe("loadConfig", func() {
	var dir string

	writeConfig := func(body string) {
		Expect(os.WriteFile(filepath.Join(dir, "config.yml"), []byte(body), 0o600)).To(Succeed())
	}

	BeforeEach(func() {
		dir = GinkgoT().TempDir()
	})

	It("reads every section from config.yml", func() {
		writeConfig(testConfig)

		cfg, err := loadConfig(dir)
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.Server.Port).To(Equal(8080))
		Expect(cfg.Server.ReadTimeout).To(Equal(15 * time.Second))
		Expect(cfg.Database.MaxOpenConns).To(Equal(10))
		Expect(cfg.Deduction.DefaultMaxAmount).To(Equal("2500.00"))
		Expect(cfg.Device.MinInterval()).To(Equal(20 * time.Minute))
		Expect(cfg.Sync.MaxRetries).To(Equal(4))
		Expect(cfg.Sync.RetryBaseDelay).To(Equal(2 * time.Minute))
		Expect(cfg.Kafka.Brokers).To(Equal([]string{"kafka-1:9092", "kafka-2:9092"}))
	})

	It("lets environment variables override file values", func() {
		writeConfig(testConfig)
		Expect(os.Setenv("ENV_HTTP_SERVER_PORT", "9090")).To(Succeed())
		DeferCleanup(os.Unsetenv, "ENV_HTTP_SERVER_PORT")

		cfg, err := loadConfig(dir)
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.Server.Port).To(Equal(9090))
	})

	It("rejects a config without a database source", func() {
		writeConfig(`
http_server:
  port: 8080
accounting:
  base_url: https://accounting.example.com
`)

		_, err := loadConfig(dir)
		Expect(err).To(MatchError(ContainSubstring("source is required")))
	})

	It("rejects an invalid deduction percentage", func() {
		writeConfig(`
database:
  source: postgres://localhost:5432/payroll_admin
  max_open_conns: 10
  max_idle_conns: 5
deduction:
  default_percentage: "seventy"
accounting:
  base_url: https://accounting.example.com
`)

		_, err := loadConfig(dir)
		Expect(err).To(MatchError(ContainSubstring("invalid default_percentage")))
	})

	It("fails when no config file exists", func() {
		_, err := loadConfig(dir)
		Expect(err).To(MatchError(ContainSubstring("error reading config")))
	})
})
