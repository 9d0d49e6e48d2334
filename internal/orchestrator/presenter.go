package orchestrator

import (
	"context"
	"strings"

	"quorum/internal/agent"
)

// present re-invokes the winning agent once in presentation mode and returns
// the text to surface as the round's final answer.
//
// Presentation is best-effort: it runs detached from the round deadline
// under its own timeout, and any failure, timeout, or empty output falls
// back to the winner's committed answer verbatim. The round outcome is
// already decided by the time present runs; nothing here can change it.
func (o *Orchestrator) present(ctx context.Context, winner string) string {
	fallback := o.states[winner].Answer.Content

	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.cfg.PresentationTimeout)
	defer cancel()

	peers := make(map[string]agent.Answer)
	for id, st := range o.states {
		if st.Answer != nil {
			peers[id] = *st.Answer
		}
	}

	events := make(chan agent.WorkerEvent)
	go func() {
		o.workers[winner].Run(pctx, agent.Invocation{
			Task:         o.cfg.Task,
			Context:      o.cfg.Context,
			PeerAnswers:  peers,
			Presentation: true,
			Emit: func(ev agent.WorkerEvent) {
				select {
				case events <- ev:
				case <-pctx.Done():
				}
			},
		})
	}()

	var streamed strings.Builder
	var answered string
	for {
		select {
		case ev := <-events:
			switch ev.Kind {
			case agent.KindContent:
				streamed.WriteString(ev.Content)
				o.tracker.PassThroughContent(winner, ev.Content)
			case agent.KindAnswer:
				answered = ev.Content
			case agent.KindError:
				o.log.Warn("presentation failed, using committed answer",
					"agent_id", winner, "error", errString(ev.Err))
				return fallback
			case agent.KindDone:
				if answered != "" {
					return answered
				}
				if streamed.Len() > 0 {
					return streamed.String()
				}
				o.log.Warn("presentation produced no output, using committed answer",
					"agent_id", winner)
				return fallback
			}
		case <-pctx.Done():
			o.log.Warn("presentation timed out, using committed answer",
				"agent_id", winner)
			return fallback
		}
	}
}

func errString(err error) string {
	if err == nil {
		return "unknown error"
	}
	return err.Error()
}
