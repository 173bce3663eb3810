package monitoring

import "testing"

func TestSetLogger(t *testing.T) {
	original := Logf
	defer func() { Logf = original }()

	called := false
	SetLogger(func(format string, v ...interface{}) {
		called = true
	})
	Logf("test message")
	if !called {
		t.Error("custom logger was not called")
	}

	// nil installs a no-op logger
	called = false
	SetLogger(nil)
	Logf("test message")
	if called {
		t.Error("no-op logger should not have triggered callback")
	}
}

func TestSetDebug(t *testing.T) {
	originalLogf := Logf
	defer func() {
		Logf = originalLogf
		SetDebug(false)
	}()

	var got string
	SetLogger(func(format string, v ...interface{}) {
		got = format
	})

	// Disabled by default
	Debugf("per-well detail")
	if got != "" {
		t.Errorf("Debugf wrote while disabled: %q", got)
	}

	SetDebug(true)
	Debugf("per-well detail")
	if got != "debug: per-well detail" {
		t.Errorf("Debugf format = %q", got)
	}

	got = ""
	SetDebug(false)
	Debugf("per-well detail")
	if got != "" {
		t.Errorf("Debugf wrote after disable: %q", got)
	}
}
