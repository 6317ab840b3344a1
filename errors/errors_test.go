package errors

import (
	stderrors "errors"
	"strings"
	"testing"
)

func TestErrorString(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		want []string
	}{
		{
			name: "phase and kind only",
			err:  &Error{Phase: PhaseRewrite, Kind: KindInvalidSource},
			want: []string{"[rewrite]", "invalid_source"},
		},
		{
			name: "with entity and detail",
			err: &Error{
				Phase:  PhaseExec,
				Kind:   KindUndeclaredVar,
				Entity: "turtle",
				Detail: "variable \"x\" was never declared",
			},
			want: []string{"[exec]", "undeclared_variable", "on turtle", "never declared"},
		},
		{
			name: "with cause",
			err:  CompileFailed(stderrors.New("unexpected token")),
			want: []string{"[compile]", "compilation_failed", "caused by: unexpected token"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.err.Error()
			for _, w := range tt.want {
				if !strings.Contains(got, w) {
					t.Errorf("Error() = %q, missing %q", got, w)
				}
			}
		})
	}
}

func TestErrorIs(t *testing.T) {
	err := UndeclaredVariable("score")
	if !stderrors.Is(err, &Error{Phase: PhaseExec, Kind: KindUndeclaredVar}) {
		t.Error("expected Is to match on phase and kind")
	}
	if stderrors.Is(err, &Error{Phase: PhaseExec, Kind: KindScriptThrow}) {
		t.Error("expected Is to reject a different kind")
	}
}

func TestUnwrap(t *testing.T) {
	cause := stderrors.New("boom")
	err := Wrap(PhaseBus, KindClosed, cause, "publish after close")
	if !stderrors.Is(err, cause) {
		t.Error("expected Unwrap chain to reach the cause")
	}
}

func TestBuilder(t *testing.T) {
	err := New(PhaseStage, KindNotFound).
		Entity("stage").
		Detail("sprite %q not registered", "cat").
		Build()

	if err.Phase != PhaseStage || err.Kind != KindNotFound {
		t.Fatalf("unexpected phase/kind: %v/%v", err.Phase, err.Kind)
	}
	if !strings.Contains(err.Error(), `sprite "cat" not registered`) {
		t.Errorf("detail formatting lost: %q", err.Error())
	}
}
