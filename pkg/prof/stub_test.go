//go:build !profile

package prof

import "testing"

func TestStub_NoOp(t *testing.T) {
	if Enabled {
		t.Error("Enabled = true without profile tag")
	}
	if err := Start(Options{CPU: true}); err != nil {
		t.Errorf("Start() error = %v, want nil", err)
	}
	if Active() {
		t.Error("Active() = true, want false")
	}
	if err := Stop(); err != nil {
		t.Errorf("Stop() error = %v, want nil", err)
	}
}
