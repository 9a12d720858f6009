package ipc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"os"
	"sort"
	"sync"

	"sublingo/internal/daemon"
	"sublingo/internal/logging"
	"sublingo/internal/queue"
)

// Server exposes daemon control via JSON-RPC over a Unix domain socket.
type Server struct {
	path      string
	logger    *slog.Logger
	listener  net.Listener
	rpcServer *rpc.Server

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewServer configures the IPC server at the given socket path.
func NewServer(ctx context.Context, path string, d *daemon.Daemon, logger *slog.Logger) (*Server, error) {
	if d == nil {
		return nil, errors.New("ipc server requires daemon")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	if err := os.RemoveAll(path); err != nil {
		return nil, fmt.Errorf("remove existing socket: %w", err)
	}
	listener, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen on socket: %w", err)
	}

	rpcServer := rpc.NewServer()
	srv := &service{daemon: d, logger: logging.NewComponentLogger(logger, "ipc"), ctx: ctx}
	if err := rpcServer.RegisterName("Sublingo", srv); err != nil {
		listener.Close()
		return nil, fmt.Errorf("register rpc service: %w", err)
	}

	serverCtx, cancel := context.WithCancel(ctx)
	return &Server{
		path:      path,
		logger:    logger,
		listener:  listener,
		rpcServer: rpcServer,
		ctx:       serverCtx,
		cancel:    cancel,
	}, nil
}

// Serve starts accepting RPC connections until the context is canceled.
func (s *Server) Serve() {
	s.logger.Debug("ipc server listening", logging.String("socket", s.path))
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			conn, err := s.listener.Accept()
			if err != nil {
				select {
				case <-s.ctx.Done():
					return
				default:
				}
				s.logger.Warn("accept failed", logging.Error(err))
				continue
			}
			s.wg.Add(1)
			go func(c net.Conn) {
				defer s.wg.Done()
				s.rpcServer.ServeCodec(jsonrpc.NewServerCodec(c))
			}(conn)
		}
	}()
}

// Close stops the server and removes the socket file.
func (s *Server) Close() {
	s.cancel()
	if s.listener != nil {
		_ = s.listener.Close()
	}
	s.wg.Wait()
	if err := os.RemoveAll(s.path); err != nil {
		s.logger.Warn("failed to remove socket", logging.String("socket", s.path), logging.Error(err))
	}
}

type service struct {
	daemon *daemon.Daemon
	logger *slog.Logger
	ctx    context.Context
}

func (s *service) Status(_ StatusRequest, resp *StatusResponse) error {
	status := s.daemon.Status(s.ctx)
	resp.Running = status.Running
	resp.LockPath = status.LockFilePath
	resp.LastError = status.Workflow.LastError
	resp.PID = os.Getpid()
	resp.Queue = QueueCounts{
		Total:      status.Workflow.Queue.Total,
		Pending:    status.Workflow.Queue.Pending,
		Processing: status.Workflow.Queue.Processing,
		Failed:     status.Workflow.Queue.Failed,
		Completed:  status.Workflow.Queue.Completed,
	}
	if status.Workflow.LastJob != nil {
		view := FromJob(status.Workflow.LastJob)
		resp.LastJob = &view
	}

	names := make([]string, 0, len(status.Workflow.StageHealth))
	for name := range status.Workflow.StageHealth {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		health := status.Workflow.StageHealth[name]
		resp.StageHealth = append(resp.StageHealth, StageHealth{
			Name:   name,
			Ready:  health.Ready,
			Detail: health.Detail,
		})
	}
	return nil
}

func (s *service) Stop(_ StopRequest, resp *StopResponse) error {
	s.logger.Info("daemon stop requested over ipc")
	s.daemon.Stop()
	resp.Stopped = true
	return nil
}

func (s *service) QueueList(req QueueListRequest, resp *QueueListResponse) error {
	statuses := make([]queue.Status, 0, len(req.Statuses))
	for _, raw := range req.Statuses {
		status, ok := queue.ParseStatus(raw)
		if !ok {
			return fmt.Errorf("unknown status %q", raw)
		}
		statuses = append(statuses, status)
	}
	jobs, err := s.daemon.ListQueue(s.ctx, statuses)
	if err != nil {
		return err
	}
	resp.Jobs = make([]JobView, 0, len(jobs))
	for _, job := range jobs {
		resp.Jobs = append(resp.Jobs, FromJob(job))
	}
	return nil
}

func (s *service) QueueClear(req QueueClearRequest, resp *QueueClearResponse) error {
	var (
		removed int64
		err     error
	)
	switch req.Scope {
	case "", "all":
		removed, err = s.daemon.ClearQueue(s.ctx)
	case "completed":
		removed, err = s.daemon.ClearCompleted(s.ctx)
	case "failed":
		removed, err = s.daemon.ClearFailed(s.ctx)
	default:
		return fmt.Errorf("unknown clear scope %q", req.Scope)
	}
	if err != nil {
		return err
	}
	resp.Removed = removed
	return nil
}

func (s *service) QueueRetry(req QueueRetryRequest, resp *QueueRetryResponse) error {
	ids := req.IDs
	if len(ids) == 0 {
		failed, err := s.daemon.ListQueue(s.ctx, []queue.Status{queue.StatusFailed})
		if err != nil {
			return err
		}
		for _, job := range failed {
			ids = append(ids, job.ID)
		}
	}
	updated, err := s.daemon.RetryFailed(s.ctx, ids)
	if err != nil {
		return err
	}
	resp.Updated = updated
	return nil
}

func (s *service) QueueCancel(req QueueCancelRequest, resp *QueueCancelResponse) error {
	requested, err := s.daemon.Cancel(s.ctx, req.ID)
	if err != nil {
		return err
	}
	resp.Requested = requested
	return nil
}

func (s *service) QueueHealth(_ QueueHealthRequest, resp *QueueHealthResponse) error {
	summary, err := s.daemon.QueueHealth(s.ctx)
	if err != nil {
		return err
	}
	resp.Counts = QueueCounts{
		Total:      summary.Total,
		Pending:    summary.Pending,
		Processing: summary.Processing,
		Failed:     summary.Failed,
		Completed:  summary.Completed,
	}
	return nil
}
