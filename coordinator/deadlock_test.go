package coordinator

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func graphTask(id string, deps ...string) *Task {
	d := make(map[string]struct{}, len(deps))
	for _, dep := range deps {
		d[dep] = struct{}{}
	}
	return &Task{ID: id, Name: id, Status: TaskPending, Dependencies: d}
}

func TestDetectDeadlock(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name  string
		tasks map[string]*Task
		want  string
	}{
		{
			name:  "empty graph",
			tasks: map[string]*Task{},
			want:  "",
		},
		{
			name: "acyclic chain",
			tasks: map[string]*Task{
				"a": graphTask("a"),
				"b": graphTask("b", "a"),
				"c": graphTask("c", "b"),
			},
			want: "",
		},
		{
			name: "two task cycle",
			tasks: map[string]*Task{
				"a": graphTask("a", "b"),
				"b": graphTask("b", "a"),
			},
			want: "a",
		},
		{
			name: "self dependency",
			tasks: map[string]*Task{
				"a": graphTask("a", "a"),
			},
			want: "a",
		},
		{
			name: "cycle behind a chain",
			tasks: map[string]*Task{
				"a": graphTask("a", "b"),
				"b": graphTask("b", "c"),
				"c": graphTask("c", "b"),
			},
			want: "b",
		},
		{
			name: "dependency on finished task is no edge",
			tasks: map[string]*Task{
				"a": graphTask("a", "done-elsewhere"),
			},
			want: "",
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, detectDeadlock(tc.tasks))
		})
	}
}
