package codegen

import (
	"context"
	"fmt"
	"sync"

	"github.com/sitegen-ai/sitegen/internal/apps"
	"github.com/sitegen-ai/sitegen/internal/history"
	"github.com/sitegen-ai/sitegen/internal/log"
)

// HistoryStore is the slice of the chat store the facade needs.
// *history.Store satisfies it.
type HistoryStore interface {
	HistorySource
	Append(ctx context.Context, appID int64, role history.Role, content string) (*history.Turn, error)
}

// Facade runs one generation end to end: persist the user turn, obtain
// the right client, augment edits with prior code, stream the model
// output, and on success persist the artifact and the assistant turn.
type Facade struct {
	factory  *Factory
	history  HistoryStore
	injector *Injector
	saver    *Saver
	logger   log.Logger

	persisting sync.WaitGroup
}

// NewFacade wires the generation pipeline together.
func NewFacade(factory *Factory, hist HistoryStore, injector *Injector, saver *Saver, logger log.Logger) (*Facade, error) {
	if factory == nil || hist == nil || injector == nil || saver == nil {
		return nil, fmt.Errorf("factory, history, injector and saver are required")
	}
	if logger == nil {
		logger = log.NewNop()
	}
	return &Facade{
		factory:  factory,
		history:  hist,
		injector: injector,
		saver:    saver,
		logger:   logger,
	}, nil
}

// Generate streams code generation for one app. Deltas go to onDelta
// in production order. A nil return means the stream completed; the
// caller may emit its terminal event immediately, while the artifact
// and assistant turn are persisted in the background (failures there
// are logged, not returned — see Wait). A non-nil return means the
// caller must emit a terminal error instead of done; nothing was
// persisted for the failed attempt beyond the user's own turn.
func (f *Facade) Generate(ctx context.Context, app *apps.App, message string, editMode bool, onDelta StreamCallback) error {
	if app == nil {
		return fmt.Errorf("app is required")
	}

	// The raw user turn is persisted before anything else so a fresh
	// client build sees consistent history; non-edit construction
	// skips this newest turn because the message also rides along as
	// the current model input.
	if _, err := f.history.Append(ctx, app.ID, history.RoleUser, message); err != nil {
		return fmt.Errorf("persisting user turn: %w", err)
	}

	client, err := f.factory.GetOrCreate(ctx, app.ID, app.GenType, editMode)
	if err != nil {
		return err
	}

	prompt := f.injector.Inject(app.ID, app.GenType, message, editMode)

	text, err := client.StreamGenerate(ctx, prompt, onDelta)
	if err != nil {
		return err
	}
	if ctx.Err() != nil {
		// Caller disconnected between the last delta and completion;
		// treat as cancelled and persist nothing.
		return ctx.Err()
	}

	// The caller's stream is finished; persistence must not delay its
	// terminal event.
	f.persisting.Add(1)
	go func() {
		defer f.persisting.Done()
		f.persist(app, text)
	}()
	return nil
}

// Wait blocks until background persistence from completed generations
// has drained. Called at shutdown so no artifact or assistant turn is
// lost to process exit.
func (f *Facade) Wait() {
	f.persisting.Wait()
}

// persist saves the artifact and assistant turn after a completed
// stream. Runs out of band from the caller's stream, so failures are
// logged rather than surfaced.
func (f *Facade) persist(app *apps.App, text string) {
	// Detached from the request context: the stream already succeeded.
	ctx := context.Background()

	result := ParseResult(app.GenType, text)
	if dir, err := f.saver.Save(app.GenType, app.ID, result); err != nil {
		f.logger.Error("saving artifact", "app_id", app.ID, "error", err)
	} else {
		f.logger.Debug("generation persisted", "app_id", app.ID, "dir", dir)
	}

	if _, err := f.history.Append(ctx, app.ID, history.RoleAI, text); err != nil {
		f.logger.Error("persisting assistant turn", "app_id", app.ID, "error", err)
	}
}
