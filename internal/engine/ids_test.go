package engine

import (
	"testing"

	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/sony/sonyflake"
)

func TestFoldPIDKeepsHighBits(t *testing.T) {
	if foldPID(70000) == foldPID(70000-65536) {
		t.Fatalf("pids 65536 apart must not share a machine id")
	}
	if got := foldPID(1234); got != 1234 {
		t.Fatalf("small pids map to themselves, got %d", got)
	}
}

func TestConfiguredMachineIDIsUsed(t *testing.T) {
	logger, _ := logtest.NewNullLogger()
	ids, err := newIDGenerator(4242, logger)
	if err != nil {
		t.Fatalf("new id generator: %v", err)
	}
	id, err := ids.NextID()
	if err != nil {
		t.Fatalf("next id: %v", err)
	}
	if got := sonyflake.Decompose(id)["machine-id"]; got != 4242 {
		t.Fatalf("expected machine id 4242, got %d", got)
	}
}
