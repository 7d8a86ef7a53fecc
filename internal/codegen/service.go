package codegen

import (
	"context"
	"fmt"
	"strings"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"

	"github.com/sitegen-ai/sitegen/internal/apps"
	"github.com/sitegen-ai/sitegen/internal/log"
	"github.com/sitegen-ai/sitegen/internal/security"
)

// DefaultMaxToolCalls caps sequential tool invocations per generation.
const DefaultMaxToolCalls = 20

// StreamCallback receives each text delta as the model produces it.
// Returning an error aborts the stream.
type StreamCallback func(ctx context.Context, delta string) error

// runFn produces the full response text while streaming deltas. The
// default implementations call the model; tests substitute scripted
// ones.
type runFn func(ctx context.Context, messages []*ai.Message, onDelta StreamCallback) (string, error)

// Client is one ready-to-invoke generation unit: a model binding, a
// conversation memory, and (for project mode) tools, a workspace and a
// guardrail. Clients are built by the Factory and keyed per
// (app, generation type).
type Client struct {
	appID   int64
	genType apps.GenType

	mem    *Memory
	guard  *security.PromptValidator
	logger log.Logger

	run runFn
}

// Memory exposes the client's conversation window.
func (c *Client) Memory() *Memory { return c.mem }

// StreamGenerate sends the message to the model, forwarding each delta
// to onDelta in production order, and returns the accumulated full
// text. The message joins the conversation window before the call; on
// success the response joins it too, so subsequent requests on a
// cached client see the whole exchange.
func (c *Client) StreamGenerate(ctx context.Context, message string, onDelta StreamCallback) (string, error) {
	if strings.TrimSpace(message) == "" {
		return "", ErrEmptyMessage
	}
	if c.guard != nil {
		if check := c.guard.Validate(message); !check.Safe {
			c.logger.Warn("prompt rejected by guardrail",
				"app_id", c.appID, "patterns", len(check.Patterns))
			return "", NewBusinessError("your message looks like a prompt-injection attempt and was rejected")
		}
	}

	c.mem.AddUserText(message)
	messages := c.mem.Messages()

	text, err := c.run(ctx, messages, onDelta)
	if err != nil {
		return "", err
	}

	c.mem.AddModelText(text)
	return text, nil
}

// directRun streams a single model call: no tools, one turn. Used by
// the single-file and multi-file strategies.
func directRun(g *genkit.Genkit, modelName, systemPrompt string) runFn {
	return func(ctx context.Context, messages []*ai.Message, onDelta StreamCallback) (string, error) {
		resp, err := genkit.Generate(ctx, g,
			ai.WithModelName(modelName),
			ai.WithSystem(systemPrompt),
			ai.WithMessages(messages...),
			ai.WithStreaming(func(ctx context.Context, chunk *ai.ModelResponseChunk) error {
				if t := chunk.Text(); t != "" {
					return onDelta(ctx, t)
				}
				return nil
			}),
		)
		if err != nil {
			return "", fmt.Errorf("model call: %w", err)
		}
		return resp.Text(), nil
	}
}

// toolLoopRun drives project-mode generation: invoke the model, execute
// any requested tools, feed results back, repeat until the model stops
// asking or the call budget runs out. A request for a tool that does
// not exist becomes a synthetic error tool-result so the model can
// correct itself instead of the turn crashing.
func toolLoopRun(g *genkit.Genkit, modelName, systemPrompt, workspace string, tools []ai.Tool, maxToolCalls int, logger log.Logger) runFn {
	if maxToolCalls <= 0 {
		maxToolCalls = DefaultMaxToolCalls
	}

	index := make(map[string]ai.Tool, len(tools))
	refs := make([]ai.ToolRef, len(tools))
	for i, t := range tools {
		index[t.Name()] = t
		refs[i] = t
	}

	return func(ctx context.Context, messages []*ai.Message, onDelta StreamCallback) (string, error) {
		ctx = withWorkspace(ctx, workspace)

		msgs := messages
		calls := 0
		for {
			resp, err := genkit.Generate(ctx, g,
				ai.WithModelName(modelName),
				ai.WithSystem(systemPrompt),
				ai.WithMessages(msgs...),
				ai.WithTools(refs...),
				ai.WithReturnToolRequests(true),
				ai.WithStreaming(func(ctx context.Context, chunk *ai.ModelResponseChunk) error {
					if t := chunk.Text(); t != "" {
						return onDelta(ctx, t)
					}
					return nil
				}),
			)
			if err != nil {
				return "", fmt.Errorf("model call: %w", err)
			}

			reqs := resp.ToolRequests()
			if len(reqs) == 0 {
				return resp.Text(), nil
			}

			var results []*ai.Part
			for _, req := range reqs {
				if calls >= maxToolCalls {
					return "", NewBusinessError(
						fmt.Sprintf("generation exceeded the limit of %d tool calls", maxToolCalls))
				}
				calls++

				tool, ok := index[req.Name]
				if !ok {
					logger.Warn("model requested unknown tool", "tool", req.Name)
					results = append(results, ai.NewToolResponsePart(&ai.ToolResponse{
						Name:   req.Name,
						Ref:    req.Ref,
						Output: fmt.Sprintf("Error: there is no tool called %s", req.Name),
					}))
					continue
				}

				out, err := tool.RunRaw(ctx, req.Input)
				if err != nil {
					return "", fmt.Errorf("tool %s: %w", req.Name, err)
				}
				results = append(results, ai.NewToolResponsePart(&ai.ToolResponse{
					Name:   req.Name,
					Ref:    req.Ref,
					Output: out,
				}))
			}

			msgs = append(msgs, resp.Message)
			msgs = append(msgs, &ai.Message{Role: ai.RoleTool, Content: results})
		}
	}
}
