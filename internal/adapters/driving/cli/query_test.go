package cli

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saga-labs/saga-core/internal/core/domain"
)

func TestQueryCmd_Use(t *testing.T) {
	assert.Equal(t, "query [text]", queryCmd.Use)
}

func TestQueryCmd_RequiresExactlyOneArg(t *testing.T) {
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs([]string{"query"})
	defer func() {
		rootCmd.SetArgs(nil)
	}()

	err := rootCmd.Execute()

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg(s)")
}

func TestQueryCmd_HasLimitFlag(t *testing.T) {
	flag := queryCmd.Flags().Lookup("limit")
	require.NotNil(t, flag, "limit flag should exist")
	assert.Equal(t, "n", flag.Shorthand)
	assert.Equal(t, "10", flag.DefValue)
}

func TestQueryCmd_PrintsResults(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetArgs([]string{"query", "--kb", "kb-1", "test query"})
	defer func() {
		rootCmd.SetArgs(nil)
		queryKBs = nil
	}()

	err := rootCmd.Execute()

	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Results:")
	assert.Contains(t, buf.String(), "alpha chunk")
	assert.Contains(t, buf.String(), "Section: Intro")
}

func TestQueryCmd_JSONOutput(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetArgs([]string{"query", "--kb", "kb-1", "--json", "test query"})
	defer func() {
		rootCmd.SetArgs(nil)
		queryKBs = nil
		queryJSON = false
	}()

	err := rootCmd.Execute()

	require.NoError(t, err)
	assert.Contains(t, buf.String(), "\"candidates\"")
	assert.Contains(t, buf.String(), "alpha chunk")
}

func TestQueryCmd_NoResults(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()
	retrievalService = &mockRetrievalService{result: &domain.RetrievalResult{}}

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetArgs([]string{"query", "--kb", "kb-1", "test query"})
	defer func() {
		rootCmd.SetArgs(nil)
		queryKBs = nil
	}()

	err := rootCmd.Execute()

	require.NoError(t, err)
	assert.Contains(t, buf.String(), "No results found.")
}

func TestQueryCmd_PrintsWarnings(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()
	retrievalService = &mockRetrievalService{result: &domain.RetrievalResult{
		Warnings: []domain.Warning{{
			Kind:    domain.WarnPartialRetrieval,
			Source:  "kb-2",
			Message: "knowledge base unavailable",
		}},
	}}

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetArgs([]string{"query", "--kb", "kb-1", "--kb", "kb-2", "test query"})
	defer func() {
		rootCmd.SetArgs(nil)
		queryKBs = nil
	}()

	err := rootCmd.Execute()

	require.NoError(t, err)
	assert.Contains(t, buf.String(), "warning: kb-2: knowledge base unavailable")
}

func TestQueryCmd_RetrievalErrorSurfaces(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()
	retrievalService = &mockRetrievalService{err: errors.New("all knowledge bases failed")}

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs([]string{"query", "--kb", "kb-1", "test query"})
	defer func() {
		rootCmd.SetArgs(nil)
		queryKBs = nil
	}()

	err := rootCmd.Execute()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "retrieval failed")
}
