//go:build tools

package tools

// nolint
import (
	_ "github.com/onsi/ginkgo/v2/ginkgo"
)
