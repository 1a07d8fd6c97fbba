package cmd

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	domainrfq "pdmrelease/internal/domain/rfq"
	"pdmrelease/internal/ports"
	"pdmrelease/internal/usecase/release"
)

func TestWriteYAMLUsesJSONFieldNames(t *testing.T) {
	detail := release.RFQDetail{
		RFQ: ports.RFQ{ID: "rfq-1", Number: "RFQ-000001", Title: "Brackets", Status: domainrfq.StatusReady},
	}

	var out bytes.Buffer
	require.NoError(t, writeYAML(&out, toDetailResponse(detail)))

	var decoded struct {
		RFQ struct {
			Number string `yaml:"number"`
			Status string `yaml:"status"`
		} `yaml:"rfq"`
	}
	require.NoError(t, yaml.Unmarshal(out.Bytes(), &decoded))
	assert.Equal(t, "RFQ-000001", decoded.RFQ.Number)
	assert.Equal(t, "ready", decoded.RFQ.Status)
	assert.False(t, strings.Contains(out.String(), "Number:"), out.String())
}

func TestDescribeErrorKeepsSentinel(t *testing.T) {
	err := describeError(fmt.Errorf("generate: %w", domainrfq.ErrNothingToPackage))
	if !errors.Is(err, domainrfq.ErrNothingToPackage) {
		t.Fatalf("describeError() = %v, want wrapped ErrNothingToPackage", err)
	}
	if !strings.HasPrefix(err.Error(), "No release files generated yet") {
		t.Fatalf("describeError() = %q, want user message prefix", err.Error())
	}
}
