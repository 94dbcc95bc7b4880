package cfg

import (
	"testing"
)

func TestGetVersion(t *testing.T) {
	if GetVersion() == "" {
		t.Error("GetVersion should never return empty string")
	}
}

func TestSetAndGet(t *testing.T) {
	original := globalCfg
	defer func() { globalCfg = original }()

	c := &Cfg{
		DBPath:               "./test.db",
		Port:                 "9090",
		WorkerCount:          1,
		SchedulerInterval:    900,
		FetchDelaySeconds:    2,
		BacklogStaleDays:     7,
		BacklogCooldownHours: 23,
		BacklogPageSize:      50,
		BacklogBatchSize:     5,
		RecencyWindowDays:    7,
		TargetFeedSize:       50,
		NotNowFraction:       0.2,
	}

	Set(c)

	got := Get()
	if got.DBPath != "./test.db" {
		t.Errorf("Expected DB path './test.db', got %q", got.DBPath)
	}
	if got.Port != "9090" {
		t.Errorf("Expected port '9090', got %q", got.Port)
	}
	if got.BacklogPageSize != 50 {
		t.Errorf("Expected backlog page size 50, got %d", got.BacklogPageSize)
	}
	if got.NotNowFraction != 0.2 {
		t.Errorf("Expected not-now fraction 0.2, got %v", got.NotNowFraction)
	}
}

func TestGetPanicsWithoutLoad(t *testing.T) {
	original := globalCfg
	globalCfg = nil
	defer func() {
		globalCfg = original
		if recover() == nil {
			t.Error("Get should panic when configuration was never loaded")
		}
	}()

	Get()
}

func TestApplyTimezone(t *testing.T) {
	if err := applyTimezone("UTC"); err != nil {
		t.Errorf("UTC should always be a valid timezone: %v", err)
	}
	if err := applyTimezone("Not/AZone"); err == nil {
		t.Error("Expected an error for an unknown timezone")
	}
}
