package shell

import (
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
)

// signalLoop adapts main.go's handleGracefulShutdown pattern
// (os/signal.Notify feeding a channel, consumed by a dedicated
// goroutine) to interactive job control: SIGINT cancels whatever
// foreground command's context is currently live (captured by the REPL
// before each RunChain call, spec §5's "Ctrl+C during a foreground
// pipeline... awaits exit, returns 128+SIGINT", which runExternal
// already implements once its ctx is cancelled); SIGTSTP is sent
// straight to the process groups of any external commands currently
// running in the foreground pipeline (Executor.ForegroundPGIDs), since
// context cancellation only supports killing, never suspending.
//
// A background single-stage job already registered with the Job
// Manager is unaffected by this loop's SIGTSTP handling. `kill -STOP %1`
// sends its signal to the job's process group via Manager.Terminate,
// which does not change the job's recorded status.
func (s *Shell) signalLoop() {
	sigs := make(chan os.Signal, 4)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTSTP, syscall.SIGTERM)

	go func() {
		for sig := range sigs {
			switch sig {
			case os.Interrupt:
				s.mu.Lock()
				cancel := s.fgCancel
				s.mu.Unlock()
				if cancel != nil {
					cancel()
				}
			case syscall.SIGTSTP:
				for _, pgid := range s.Exec.ForegroundPGIDs() {
					if err := syscall.Kill(-pgid, syscall.SIGTSTP); err != nil {
						s.log.Debug("forwarding SIGTSTP failed", zap.Int("pgid", pgid), zap.Error(err))
					}
				}
			case syscall.SIGTERM:
				s.log.Info("received SIGTERM, shutting down")
				s.Close()
				os.Exit(143)
			}
		}
	}()
}
