package logging

import (
	"errors"
	"testing"
)

func TestNewFields(t *testing.T) {
	fields := NewFields()
	if fields == nil {
		t.Fatal("NewFields() returned nil")
	}
	if len(fields) != 0 {
		t.Errorf("NewFields() should be empty, got %d fields", len(fields))
	}
}

func TestFields_Component(t *testing.T) {
	fields := NewFields().Component("job-queue")

	if fields["component"] != "job-queue" {
		t.Errorf("Component() = %v, want %v", fields["component"], "job-queue")
	}
}

func TestFields_Operation(t *testing.T) {
	fields := NewFields().Operation("claim")

	if fields["operation"] != "claim" {
		t.Errorf("Operation() = %v, want %v", fields["operation"], "claim")
	}
}

func TestFields_Resource(t *testing.T) {
	fields := NewFields().Resource("job_slot", "a.b")

	if fields["resource_type"] != "job_slot" {
		t.Errorf("Resource() resource_type = %v, want %v", fields["resource_type"], "job_slot")
	}
	if fields["resource_name"] != "a.b" {
		t.Errorf("Resource() resource_name = %v, want %v", fields["resource_name"], "a.b")
	}
}

func TestFields_ResourceWithoutName(t *testing.T) {
	fields := NewFields().Resource("job_slot", "")

	if _, ok := fields["resource_name"]; ok {
		t.Error("Resource() should not set resource_name when empty")
	}
}

func TestFields_Path(t *testing.T) {
	fields := NewFields().Path("a.b.c")
	if fields["path"] != "a.b.c" {
		t.Errorf("Path() = %v, want %v", fields["path"], "a.b.c")
	}
}

func TestFields_Attempt(t *testing.T) {
	fields := NewFields().Attempt(3)
	if fields["attempt"] != 3 {
		t.Errorf("Attempt() = %v, want %v", fields["attempt"], 3)
	}
}

func TestFields_Err(t *testing.T) {
	fields := NewFields().Err(errors.New("boom"))
	if fields["error"] != "boom" {
		t.Errorf("Err() = %v, want %v", fields["error"], "boom")
	}
}

func TestFields_ErrNil(t *testing.T) {
	fields := NewFields().Err(nil)
	if _, ok := fields["error"]; ok {
		t.Error("Err(nil) should not set the error key")
	}
}

func TestFields_Custom(t *testing.T) {
	fields := NewFields().Custom("addr", ":8080")
	if fields["addr"] != ":8080" {
		t.Errorf("Custom() = %v, want %v", fields["addr"], ":8080")
	}
}
