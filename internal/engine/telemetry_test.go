package engine_test

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"opsconsole/internal/domain"
	"opsconsole/internal/engine"
)

func TestTransitionSpanCarriesDecisionID(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(prev)
		_ = tp.Shutdown(context.Background())
	})

	env := newTestEnv(t)
	task := env.newTask(t, domain.TaskInProgress)
	res, err := env.Engine.TransitionTaskStatus(env.Ctx, task.ID, domain.TaskWaitingDecision, engine.TransitionOptions{})
	if err != nil {
		t.Fatalf("transition: %v", err)
	}

	var found bool
	for _, span := range recorder.Ended() {
		if span.Name() != "engine.task.transition" {
			continue
		}
		for _, kv := range span.Attributes() {
			if kv.Key == "decision.id" && kv.Value.AsString() == *res.DecisionID {
				found = true
			}
		}
	}
	if !found {
		t.Fatalf("no engine.task.transition span with decision.id %s", *res.DecisionID)
	}
}
