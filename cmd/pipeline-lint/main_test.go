package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentflow/onboarding/pkg/domain/pipeline"
	httputil "github.com/agentflow/onboarding/pkg/infrastructure/http"
)

func TestDefaultPipelineIsClean(t *testing.T) {
	assert.Empty(t, lint(snapshot(pipeline.Default())))
}

func TestLintFlagsStageWithoutRequiredSteps(t *testing.T) {
	stages := []stageView{
		{Stage: pipeline.Stage{Key: "a", Order: 1}, Steps: []pipeline.Step{{ID: "s1", Stage: "a"}}},
		{Stage: pipeline.Stage{Key: "b", Order: 2}},
	}
	assert.Equal(t, []string{"stage a: no required steps"}, lint(stages))
}

func TestPrintPipeline(t *testing.T) {
	reg := pipeline.Default()
	var buf bytes.Buffer
	printPipeline(&buf, snapshot(reg), reg)
	assert.Contains(t, buf.String(), "surelc_screenshot")
	assert.Contains(t, buf.String(), "8 stages")
}

func TestFetchAndDiff(t *testing.T) {
	local := snapshot(pipeline.Default())
	remote := snapshot(pipeline.Default())
	remote[0].Steps = remote[0].Steps[:1]
	remote[2].Steps[0].IsRequired = true

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/pipeline", r.URL.Path)
		httputil.WriteJSON(w, http.StatusOK, remote)
	}))
	defer srv.Close()

	deployed, err := fetchPipeline(context.Background(), srv.Client(), srv.URL+"/")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{
		"step upload_license: missing remotely",
		"step create_surelc_account: definition differs",
	}, diff(local, deployed))
}

func TestFetchSurfacesAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteError(w, http.StatusServiceUnavailable, "warming up")
	}))
	defer srv.Close()

	_, err := fetchPipeline(context.Background(), srv.Client(), srv.URL)
	var httpErr *httputil.HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusServiceUnavailable, httpErr.StatusCode)
	assert.Equal(t, "warming up", httpErr.Message)
}

func TestIdenticalPipelinesHaveNoDiff(t *testing.T) {
	assert.Empty(t, diff(snapshot(pipeline.Default()), snapshot(pipeline.Default())))
}
