package registry

import (
	"context"
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/glenn-edgar/kbcoord/internal/apperror"
	"github.com/glenn-edgar/kbcoord/internal/kb/jsonb"
	"github.com/glenn-edgar/kbcoord/internal/path"
)

// validate is package-global: validator.New() builds and caches its
// reflection metadata per struct type, so one shared instance is the
// idiomatic way to use it rather than constructing one per call.
var validate = validator.New()

// entryInput is the struct validator/v10 checks before Builder writes a
// row — Kind must be one of the five spec.md §3.2 tags (plus HEADER), Name
// must be a non-empty identifier-safe string. queue_depth is checked
// separately below since it lives in the properties blob, not a struct
// field validator tags can reach.
type entryInput struct {
	Kind Kind   `validate:"required,oneof=HEADER STATUS JOB STREAM RPC_SERVER RPC_CLIENT"`
	Name string `validate:"required,excludesall= "`
}

// frame is one level of the builder's path stack: the two labels a matching
// AddHeader/Leave pair pushed and must pop in reverse.
type frame struct {
	linkLabel string
	name      string
}

// Builder walks a tree of path segments and writes registry rows, one per
// declared endpoint (spec.md §4.1). It is the only writer of registry rows;
// once check_installation succeeds the registry is treated as immutable
// (spec.md §3.2) and only read by the Reconciler and query façade.
type Builder struct {
	store Store
	base  path.Path
	stack []frame
}

// NewBuilder starts a builder rooted at root (the empty path if root is the
// zero value).
func NewBuilder(store Store, root path.Path) *Builder {
	return &Builder{store: store, base: root}
}

// current computes the full path implied by base plus every frame still on
// the stack.
func (b *Builder) current() path.Path {
	p := b.base
	for _, f := range b.stack {
		p, _ = p.Join(f.linkLabel, f.name)
	}
	return p
}

// AddHeader pushes (kind's conventional link label, name) onto the path
// stack and writes one registry row at the resulting path. Use this to
// build structural scaffolding you will later descend into with further
// AddHeader/AddInfo calls, closed off with a matching Leave.
func (b *Builder) AddHeader(ctx context.Context, kind Kind, name string, properties, data jsonb.Map) (path.Path, error) {
	return b.write(ctx, kind, name, properties, data, true)
}

// AddInfo pushes (kind's conventional link label, name), writes one
// registry row, and immediately pops both segments back off — it creates a
// leaf endpoint without leaving the stack positioned to descend further.
func (b *Builder) AddInfo(ctx context.Context, kind Kind, name string, properties, data jsonb.Map) (path.Path, error) {
	return b.write(ctx, kind, name, properties, data, false)
}

func (b *Builder) write(ctx context.Context, kind Kind, name string, properties, data jsonb.Map, keep bool) (path.Path, error) {
	if err := validate.Struct(entryInput{Kind: kind, Name: name}); err != nil {
		return path.Path{}, apperror.NewValueError(err.Error()).WithDetailsf("kind=%s name=%q", kind, name)
	}
	if kind.QueuedKind() {
		depth, ok := properties.QueueDepth()
		if !ok || depth < 0 {
			return path.Path{}, apperror.NewValueError("queue_depth must be a non-negative integer").WithDetailsf("kind=%s name=%s", kind, name)
		}
	}

	link := kind.linkLabel()
	p, err := b.current().Join(link, name)
	if err != nil {
		return path.Path{}, err
	}

	entry := Entry{Kind: kind, Name: name, Properties: properties, Data: data, Path: p.String()}
	if _, err := b.store.Insert(ctx, entry); err != nil {
		return path.Path{}, err
	}

	if keep {
		b.stack = append(b.stack, frame{linkLabel: link, name: name})
	}
	return p, nil
}

// Leave pops the frame pushed by the matching AddHeader(kind, name, ...)
// call. It fails (fatal, per spec.md §4.1) if the stack is empty or its top
// frame does not match (kind, name).
func (b *Builder) Leave(kind Kind, name string) error {
	if len(b.stack) == 0 {
		return apperror.NewInstallationFailed("leave with empty path stack", fmt.Errorf("leave(%s, %s)", kind, name)).WithDetails("stack underflow")
	}
	top := b.stack[len(b.stack)-1]
	if top.linkLabel != kind.linkLabel() || top.name != name {
		return apperror.NewInstallationFailed("leave does not match top of path stack",
			fmt.Errorf("expected (%s, %s), got (%s, %s)", top.linkLabel, top.name, kind.linkLabel(), name))
	}
	b.stack = b.stack[:len(b.stack)-1]
	return nil
}

// CheckInstallation asserts the path stack is empty. On failure it drops
// all registry state (spec.md §4.1, §9: "both asserts and destroys state on
// failure") and returns a distinct InstallationFailed error so callers can
// tell mis-install from connection loss (spec.md §9).
func (b *Builder) CheckInstallation(ctx context.Context) error {
	if len(b.stack) == 0 {
		return nil
	}
	depth := len(b.stack)
	if err := b.store.DeleteAll(ctx); err != nil {
		return apperror.NewInstallationFailed("path stack not empty, and registry cleanup also failed", err).WithDetailsf("unbalanced frames: %d", depth)
	}
	return apperror.NewInstallationFailed("path stack not empty at installation check", ErrBuilderStackNotEmpty).WithDetailsf("unbalanced frames: %d", depth)
}

// StackDepth reports the number of unclosed AddHeader calls, for tests and
// diagnostics.
func (b *Builder) StackDepth() int {
	return len(b.stack)
}
