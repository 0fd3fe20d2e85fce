package resilience

import (
	"errors"
	"testing"
	"time"

	"github.com/MrWong99/lexibot/pkg/provider/stt"
	sttmock "github.com/MrWong99/lexibot/pkg/provider/stt/mock"
)

func TestSTTSupervisor_AliveSourceIsNoOp(t *testing.T) {
	t.Parallel()

	src := sttmock.NewSource()
	sup := NewSTTSupervisor(src, func() (stt.Source, error) {
		t.Fatal("factory called for a live source")
		return nil, nil
	}, STTSupervisorConfig{})

	restarted, err := sup.CheckAndRestart()
	if err != nil {
		t.Fatalf("CheckAndRestart: %v", err)
	}
	if restarted {
		t.Error("live source was restarted")
	}
	if sup.Source() != src {
		t.Error("source was replaced")
	}
}

func TestSTTSupervisor_RestartsDeadSource(t *testing.T) {
	t.Parallel()

	dead := sttmock.NewSource()
	dead.SetAlive(false)
	fresh := sttmock.NewSource()

	restartHooks := 0
	sup := NewSTTSupervisor(dead, func() (stt.Source, error) {
		return fresh, nil
	}, STTSupervisorConfig{OnRestart: func() { restartHooks++ }})

	restarted, err := sup.CheckAndRestart()
	if err != nil {
		t.Fatalf("CheckAndRestart: %v", err)
	}
	if !restarted {
		t.Fatal("dead source was not restarted")
	}
	if sup.Source() != fresh {
		t.Error("source was not replaced")
	}
	if dead.CloseCount() != 1 {
		t.Errorf("dead source close count = %d, want 1", dead.CloseCount())
	}
	if restartHooks != 1 {
		t.Errorf("restart hook count = %d, want 1", restartHooks)
	}
}

func TestSTTSupervisor_FactoryError(t *testing.T) {
	t.Parallel()

	dead := sttmock.NewSource()
	dead.SetAlive(false)

	want := errors.New("mic unavailable")
	sup := NewSTTSupervisor(dead, func() (stt.Source, error) {
		return nil, want
	}, STTSupervisorConfig{})

	restarted, err := sup.CheckAndRestart()
	if restarted {
		t.Error("restart reported despite factory error")
	}
	if !errors.Is(err, want) {
		t.Fatalf("want factory error, got %v", err)
	}
}

func TestSTTSupervisor_RestartBudget(t *testing.T) {
	t.Parallel()

	newDead := func() stt.Source {
		s := sttmock.NewSource()
		s.SetAlive(false)
		return s
	}

	sup := NewSTTSupervisor(newDead(), func() (stt.Source, error) {
		return newDead(), nil
	}, STTSupervisorConfig{MaxRestarts: 2, Window: time.Hour})

	for i := range 2 {
		restarted, err := sup.CheckAndRestart()
		if err != nil || !restarted {
			t.Fatalf("restart %d: restarted=%v err=%v", i, restarted, err)
		}
	}

	_, err := sup.CheckAndRestart()
	if !errors.Is(err, ErrTooManyRestarts) {
		t.Fatalf("want ErrTooManyRestarts, got %v", err)
	}
}
