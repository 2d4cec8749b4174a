package contract

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr(f float64) *float64 { return &f }

func TestGetPlainLabel(t *testing.T) {
	tests := []struct {
		name     string
		input    *float64
		expected string
	}{
		{
			name:     "no accuracy",
			input:    nil,
			expected: UnknownValue,
		},
		{
			name:     "zero",
			input:    ptr(0),
			expected: FailingValue,
		},
		{
			name:     "just before degraded",
			input:    ptr(79.99),
			expected: FailingValue,
		},
		{
			name:     "exactly degraded",
			input:    ptr(80),
			expected: DegradedValue,
		},
		{
			name:     "exactly healthy",
			input:    ptr(95),
			expected: HealthyValue,
		},
		{
			name:     "perfect",
			input:    ptr(100),
			expected: HealthyValue,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, GetPlainLabel(tt.input))
		})
	}
}

func TestGetColorLabel(t *testing.T) {
	tests := []struct {
		name     string
		accuracy *float64
		label    string
	}{
		{"unknown", nil, UnknownValue},
		{"failing", ptr(10), FailingValue},
		{"degraded", ptr(85), DegradedValue},
		{"healthy", ptr(99.5), HealthyValue},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := GetColorLabel(tt.accuracy)
			// Should contain the plain label
			assert.Contains(t, result, tt.label)
		})
	}
}

func TestSelectOutputFile(t *testing.T) {
	t.Run("empty path returns stdout", func(t *testing.T) {
		file, err := SelectOutputFile("")
		require.NoError(t, err)
		assert.Equal(t, os.Stdout, file)
	})

	t.Run("valid path creates file", func(t *testing.T) {
		tempFile := filepath.Join(t.TempDir(), "test_output.json")

		file, err := SelectOutputFile(tempFile)
		require.NoError(t, err)
		assert.NotNil(t, file)
		_ = file.Close()

		// Verify file was created
		_, err = os.Stat(tempFile)
		assert.NoError(t, err)
	})
}

func TestDBFilePaths(t *testing.T) {
	homeDir, err := os.UserHomeDir()
	require.NoError(t, err)

	for _, path := range []string{GetSourceDBFilePath(), GetRunDBFilePath()} {
		assert.NotEmpty(t, path)
		assert.True(t, strings.HasPrefix(path, homeDir), "path %s should start with home dir %s", path, homeDir)
	}
	assert.Contains(t, GetRunDBFilePath(), ".stackreport_runs.db")
	assert.NotEqual(t, GetSourceDBFilePath(), GetRunDBFilePath())
}

func TestTruncatePath(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		maxWidth int
		expected string
	}{
		{"short path unchanged", "abc 1.0.0", 20, "abc 1.0.0"},
		{"long path truncated", "abc 1.0.0,def 2.0.0,ghi 3.0.0", 12, "...ghi 3.0.0"},
		{"tiny width unchanged", "abc 1.0.0", 3, "abc 1.0.0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, TruncatePath(tt.path, tt.maxWidth))
		})
	}
}

func TestParseBoolString(t *testing.T) {
	tests := []struct {
		input    string
		expected bool
		wantErr  bool
	}{
		{"yes", true, false},
		{"TRUE", true, false},
		{"1", true, false},
		{"no", false, false},
		{"False", false, false},
		{"0", false, false},
		{"maybe", false, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseBoolString(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}
