package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/agentflow/onboarding/pkg/domain/pipeline"
	httputil "github.com/agentflow/onboarding/pkg/infrastructure/http"
)

// stageView mirrors one element of GET /pipeline.
type stageView struct {
	pipeline.Stage
	Steps []pipeline.Step `json:"steps"`
}

func main() {
	remote := flag.String("remote", "", "base URL of a running onboarding API to compare against")
	quiet := flag.Bool("q", false, "only report problems")
	timeout := flag.Duration("timeout", 10*time.Second, "request timeout for -remote")
	flag.Parse()

	reg := pipeline.Default()
	local := snapshot(reg)

	if !*quiet {
		printPipeline(os.Stdout, local, reg)
	}

	problems := lint(local)

	if *remote != "" {
		ctx, cancel := context.WithTimeout(context.Background(), *timeout)
		defer cancel()
		deployed, err := fetchPipeline(ctx, http.DefaultClient, *remote)
		if err != nil {
			fmt.Fprintf(os.Stderr, "fetch %s: %v\n", *remote, err)
			os.Exit(2)
		}
		problems = append(problems, diff(local, deployed)...)
	}

	for _, p := range problems {
		fmt.Fprintln(os.Stderr, p)
	}
	if len(problems) > 0 {
		os.Exit(1)
	}
}

func snapshot(reg *pipeline.Registry) []stageView {
	stages := reg.Stages()
	out := make([]stageView, 0, len(stages))
	for _, st := range stages {
		out = append(out, stageView{Stage: st, Steps: reg.StepsForStage(st.Key)})
	}
	return out
}

func printPipeline(w io.Writer, stages []stageView, reg *pipeline.Registry) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ORDER\tSTAGE\tSTEP\tREQUIRED\tGATE")
	for _, st := range stages {
		for _, step := range st.Steps {
			fmt.Fprintf(tw, "%d\t%s\t%s\t%v\t%s\n", st.Order, st.Key, step.ID, step.IsRequired, gate(step))
		}
	}
	tw.Flush()
	fmt.Fprintf(w, "\n%d stages, %d steps\n", len(stages), reg.TotalSteps())
}

func gate(s pipeline.Step) string {
	switch {
	case s.RequiresUpload:
		return "upload"
	case s.RequiresSignature:
		return "signature"
	}
	return "-"
}

// lint reports structural problems the registry itself accepts. A stage
// with no required step would be passed through on the next advance; only
// the terminal stage may look like that.
func lint(stages []stageView) []string {
	var problems []string
	for i, st := range stages {
		required := 0
		for _, step := range st.Steps {
			if step.IsRequired {
				required++
			}
			if step.RequiresUpload && step.RequiresSignature {
				problems = append(problems, fmt.Sprintf("step %s: both upload and signature gated", step.ID))
			}
		}
		if required == 0 && i < len(stages)-1 {
			problems = append(problems, fmt.Sprintf("stage %s: no required steps", st.Key))
		}
	}
	return problems
}

func fetchPipeline(ctx context.Context, client *http.Client, base string) ([]stageView, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(base, "/")+"/pipeline", nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if err := httputil.ParseErrorResponse(resp); err != nil {
		return nil, err
	}

	var env struct {
		Success bool        `json:"success"`
		Data    []stageView `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, fmt.Errorf("decode pipeline: %w", err)
	}
	return env.Data, nil
}

// diff lists every stage or step that differs between the built-in
// pipeline and a deployed one.
func diff(local, remote []stageView) []string {
	var out []string
	if len(local) != len(remote) {
		out = append(out, fmt.Sprintf("stage count: local %d, remote %d", len(local), len(remote)))
	}

	remoteStages := make(map[string]stageView, len(remote))
	for _, st := range remote {
		remoteStages[st.Key] = st
	}
	for _, st := range local {
		r, ok := remoteStages[st.Key]
		if !ok {
			out = append(out, fmt.Sprintf("stage %s: missing remotely", st.Key))
			continue
		}
		if r.Order != st.Order {
			out = append(out, fmt.Sprintf("stage %s: order local %d, remote %d", st.Key, st.Order, r.Order))
		}
		delete(remoteStages, st.Key)

		remoteSteps := make(map[string]pipeline.Step, len(r.Steps))
		for _, s := range r.Steps {
			remoteSteps[s.ID] = s
		}
		for _, s := range st.Steps {
			rs, ok := remoteSteps[s.ID]
			switch {
			case !ok:
				out = append(out, fmt.Sprintf("step %s: missing remotely", s.ID))
			case rs != s:
				out = append(out, fmt.Sprintf("step %s: definition differs", s.ID))
			}
			delete(remoteSteps, s.ID)
		}
		for id := range remoteSteps {
			out = append(out, fmt.Sprintf("step %s: only remote", id))
		}
	}
	for key := range remoteStages {
		out = append(out, fmt.Sprintf("stage %s: only remote", key))
	}
	return out
}
