package server

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/taskmesh/a2ad/internal/agent"
	"github.com/taskmesh/a2ad/internal/session"
	"github.com/taskmesh/a2ad/internal/store"
	"github.com/taskmesh/a2ad/pkg/a2a"
)

// sendRequest is one resolved message/send or message/stream call.
type sendRequest struct {
	params    *a2a.MessageSendParams
	taskID    string
	contextID string
}

// admission is the outcome of the locked phase of a send: either a freshly
// started session with a subscription attached before the computation
// began, or a subscription to a running session that took the message as a
// follow-up.
type admission struct {
	sess     *session.Session
	sub      *session.Subscriber
	followUp bool
}

// MessageSend runs the message/send method. Blocking calls return once the
// computation settles or pauses for input; non-blocking calls return as
// soon as the first event is emitted. The result is the task snapshot, or
// the agent's bare message when no task was created.
func (h *Handler) MessageSend(ctx context.Context, call *agent.CallContext, params *a2a.MessageSendParams) (a2a.Event, error) {
	if call == nil {
		call = agent.NewCallContext(nil)
	}
	req, err := h.resolveSend(params)
	if err != nil {
		return nil, err
	}

	adm, err := h.admit(ctx, call, req)
	if err != nil {
		return nil, err
	}

	if adm.followUp {
		return h.awaitFollowUp(ctx, req, adm)
	}
	if req.params.Blocking() {
		return h.awaitCompletion(ctx, req, adm)
	}
	return h.firstEvent(ctx, req, adm)
}

// resolveSend validates the request and fills in generated ids.
func (h *Handler) resolveSend(params *a2a.MessageSendParams) (*sendRequest, error) {
	if params == nil || params.Message == nil {
		return nil, a2a.InvalidParams("message is required")
	}
	msg := params.Message
	if len(msg.Parts) == 0 {
		return nil, a2a.InvalidParams("message.parts must not be empty")
	}
	if msg.Role == "" {
		msg.Role = a2a.RoleUser
	}
	if msg.MessageID == "" {
		msg.MessageID = uuid.New().String()
	}

	req := &sendRequest{params: params, taskID: msg.TaskID, contextID: msg.ContextID}
	if req.taskID == "" {
		req.taskID = uuid.New().String()
	}
	if req.contextID == "" {
		req.contextID = uuid.New().String()
	}
	return req, nil
}

// admit runs the phase of a send that must be serialized per task: resolve
// the addressed task, register an inline push config, and either join the
// running session or create a new one. The task key is held only here;
// every wait happens after it is released.
func (h *Handler) admit(ctx context.Context, call *agent.CallContext, req *sendRequest) (*admission, error) {
	unlock, err := h.locks.Lock(ctx, session.TaskKey(req.taskID))
	if err != nil {
		return nil, err
	}
	defer unlock()

	msg := req.params.Message

	var existing *a2a.Task
	if msg.TaskID != "" {
		existing, err = h.tasks.Get(ctx, msg.TaskID)
		if errors.Is(err, store.ErrNotFound) {
			return nil, a2a.TaskNotFound(msg.TaskID)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to load task %s: %w", msg.TaskID, err)
		}
		if existing.Status.State.IsTerminal() {
			return nil, a2a.TaskNotCancelable(msg.TaskID)
		}
		if msg.ContextID != "" && msg.ContextID != existing.ContextID {
			return nil, a2a.InvalidParams("message.contextId does not match the addressed task")
		}
		req.contextID = existing.ContextID
	}
	msg.ContextID = req.contextID

	if cfg := req.params.Configuration; h.pushEnabled && cfg != nil && cfg.PushNotificationConfig != nil {
		if _, err := h.push.Save(ctx, req.taskID, cfg.PushNotificationConfig); err != nil {
			return nil, fmt.Errorf("failed to register push config: %w", err)
		}
	}

	if sess, ok := h.sessions.GetSession(req.taskID); ok {
		sub, err := h.joinSession(ctx, sess, msg)
		if err != nil {
			return nil, err
		}
		return &admission{sess: sess, sub: sub, followUp: true}, nil
	}

	sess, sub, err := h.startSession(ctx, call, req, existing)
	if err != nil {
		return nil, err
	}
	return &admission{sess: sess, sub: sub}, nil
}

// joinSession persists a follow-up message into the conversation and the
// task history, then attaches a subscription so the caller can observe the
// transitions that answer it. Runs under the task key.
func (h *Handler) joinSession(ctx context.Context, sess *session.Session, msg *a2a.Message) (*session.Subscriber, error) {
	msg.TaskID = sess.TaskID()
	if err := h.messages.Save(ctx, msg); err != nil {
		return nil, fmt.Errorf("failed to persist follow-up message: %w", err)
	}
	// Message-only sessions have no task row; the conversation record
	// above is all there is to update.
	if _, err := h.tasks.Update(ctx, sess.TaskID(), func(t *a2a.Task) error {
		t.History = append(t.History, msg)
		return nil
	}); err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("failed to append follow-up to history: %w", err)
	}
	return sess.Processor().Subscribe(), nil
}

// startSession wires a processor, session, and request context for new
// work and starts it through the manager. The returned subscription was
// attached before the computation started, so it observes every event.
// Runs under the task key.
func (h *Handler) startSession(ctx context.Context, call *agent.CallContext, req *sendRequest, existing *a2a.Task) (*session.Session, *session.Subscriber, error) {
	processor := session.NewProcessor(req.taskID, req.contextID, h.tasks, h.messages, h.bufSize, h.logger)

	reqCtx := &agent.RequestContext{
		Params:    req.params,
		TaskID:    req.taskID,
		ContextID: req.contextID,
		Task:      existing,
		Tasks:     store.NewContextTaskStore(req.contextID, h.tasks),
		Messages:  store.NewContextMessageStore(req.contextID, h.messages),
		Call:      call,
	}

	sess := session.NewSession(context.Background(), req.taskID, req.contextID, processor, func(runCtx context.Context) error {
		return h.executor.Execute(runCtx, reqCtx, processor)
	})

	ready, err := h.sessions.AddSession(ctx, sess)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to register session: %w", err)
	}
	select {
	case <-ready:
	case <-ctx.Done():
		// The monitor is already watching this session; cancel it so
		// the teardown it waits for actually happens.
		_ = sess.CancelAndJoin(ctx)
		return nil, nil, ctx.Err()
	}

	sub := processor.Subscribe()
	sess.Start()

	h.logger.Info("Started session",
		zap.String("task_id", req.taskID),
		zap.String("context_id", req.contextID),
		zap.Bool("resumed", existing != nil))
	return sess, sub, nil
}

// awaitCompletion drains the subscription until the computation settles or
// pauses for input, then reports the final snapshot or bare reply.
func (h *Handler) awaitCompletion(ctx context.Context, req *sendRequest, adm *admission) (a2a.Event, error) {
	defer adm.sub.Close()

	var reply *a2a.Message
	for {
		select {
		case ev, ok := <-adm.sub.Events():
			if !ok {
				return h.settledResult(ctx, req, adm, reply)
			}
			switch typed := ev.(type) {
			case *a2a.Message:
				reply = typed
			case *a2a.TaskStatusUpdateEvent:
				if typed.Status.State.Interrupted() {
					return h.snapshot(ctx, req.taskID, req.params.HistoryLength())
				}
			}
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// settledResult reports the outcome of a drained-to-completion send: the
// stored snapshot when the computation produced a task, otherwise the last
// bare message it replied with. The session is fully removed before the
// snapshot is read, so the state it reports is final.
func (h *Handler) settledResult(ctx context.Context, req *sendRequest, adm *admission, reply *a2a.Message) (a2a.Event, error) {
	if err := adm.sess.Join(ctx); err != nil && ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if err := adm.sess.AwaitRemoval(ctx); err != nil {
		return nil, err
	}

	task, err := h.tasks.Get(ctx, req.taskID)
	if errors.Is(err, store.ErrNotFound) {
		if reply != nil {
			return reply, nil
		}
		if runErr := adm.sess.Result(); runErr != nil && !errors.Is(runErr, context.Canceled) {
			return nil, a2a.Internal(runErr)
		}
		return nil, a2a.InvalidAgentResponse("the computation produced no response")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load task %s: %w", req.taskID, err)
	}
	return a2a.ProjectTask(task, req.params.HistoryLength(), true), nil
}

// firstEvent derives the non-blocking result from the first event the
// computation emits.
func (h *Handler) firstEvent(ctx context.Context, req *sendRequest, adm *admission) (a2a.Event, error) {
	defer adm.sub.Close()

	select {
	case ev, ok := <-adm.sub.Events():
		if !ok {
			return h.settledResult(ctx, req, adm, nil)
		}
		switch typed := ev.(type) {
		case *a2a.Message:
			return typed, nil
		case *a2a.Task:
			return a2a.ProjectTask(typed, req.params.HistoryLength(), true), nil
		default:
			// A resumed task may open with an update event; the stored
			// snapshot already includes it.
			return h.snapshot(ctx, req.taskID, req.params.HistoryLength())
		}
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// awaitFollowUp reports the result of a message that joined a running
// session. Blocking calls wait for the next working, interrupted, or
// terminal transition after the message; non-blocking calls report the
// current snapshot.
func (h *Handler) awaitFollowUp(ctx context.Context, req *sendRequest, adm *admission) (a2a.Event, error) {
	defer adm.sub.Close()

	if !req.params.Blocking() {
		return h.snapshot(ctx, req.taskID, req.params.HistoryLength())
	}

	for {
		select {
		case ev, ok := <-adm.sub.Events():
			if !ok {
				// The session settled while the message was attached;
				// the snapshot is already final.
				return h.snapshot(ctx, req.taskID, req.params.HistoryLength())
			}
			status, isStatus := ev.(*a2a.TaskStatusUpdateEvent)
			if !isStatus {
				continue
			}
			state := status.Status.State
			if state == a2a.TaskStateWorking || state.IsTerminal() || state.Interrupted() {
				return h.snapshot(ctx, req.taskID, req.params.HistoryLength())
			}
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// snapshot loads and projects the stored task.
func (h *Handler) snapshot(ctx context.Context, taskID string, historyLength *int) (a2a.Event, error) {
	task, err := h.tasks.Get(ctx, taskID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, a2a.TaskNotFound(taskID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load task %s: %w", taskID, err)
	}
	return a2a.ProjectTask(task, historyLength, true), nil
}
