package store

import (
	"os"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestStore(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Store Config Suite")
}

var _ = Describe("Config", func() {
	Describe("DefaultConfig", func() {
		It("returns the expected defaults", func() {
			c := DefaultConfig()
			Expect(c.Host).To(Equal("localhost"))
			Expect(c.Port).To(Equal(5432))
			Expect(c.Database).To(Equal("kbcoord"))
			Expect(c.SSLMode).To(Equal("disable"))
			Expect(c.MaxOpenConns).To(Equal(25))
			Expect(c.ConnMaxLifetime).To(Equal(5 * time.Minute))
		})
	})

	Describe("LoadFromEnv", func() {
		var c *Config

		BeforeEach(func() {
			c = DefaultConfig()
			os.Unsetenv("KB_DB_HOST")
			os.Unsetenv("KB_DB_PORT")
		})

		It("overrides values present in the environment", func() {
			os.Setenv("KB_DB_HOST", "db.internal")
			os.Setenv("KB_DB_PORT", "6543")
			defer os.Unsetenv("KB_DB_HOST")
			defer os.Unsetenv("KB_DB_PORT")

			c.LoadFromEnv()
			Expect(c.Host).To(Equal("db.internal"))
			Expect(c.Port).To(Equal(6543))
		})

		It("ignores a malformed port", func() {
			os.Setenv("KB_DB_PORT", "not-a-port")
			defer os.Unsetenv("KB_DB_PORT")

			original := c.Port
			c.LoadFromEnv()
			Expect(c.Port).To(Equal(original))
		})

		It("leaves defaults alone when nothing is set", func() {
			before := *c
			c.LoadFromEnv()
			Expect(*c).To(Equal(before))
		})
	})

	Describe("Validate", func() {
		It("accepts the default config", func() {
			Expect(DefaultConfig().Validate()).To(Succeed())
		})

		It("rejects an empty host", func() {
			c := DefaultConfig()
			c.Host = ""
			Expect(c.Validate()).To(MatchError(ContainSubstring("host is required")))
		})

		It("rejects an out-of-range port", func() {
			c := DefaultConfig()
			c.Port = 0
			Expect(c.Validate()).To(MatchError(ContainSubstring("port must be between")))
		})

		It("rejects a non-positive MaxOpenConns", func() {
			c := DefaultConfig()
			c.MaxOpenConns = 0
			Expect(c.Validate()).To(MatchError(ContainSubstring("max open connections")))
		})

		It("rejects a negative MaxIdleConns", func() {
			c := DefaultConfig()
			c.MaxIdleConns = -1
			Expect(c.Validate()).To(MatchError(ContainSubstring("max idle connections")))
		})
	})
})
