package schedule

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type namedJob struct {
	name string
	runs int
}

func (j *namedJob) Name() string { return j.name }

func (j *namedJob) Run(ctx context.Context) error {
	j.runs++
	return nil
}

func TestCronScheduler_AddJob(t *testing.T) {
	s := NewCronScheduler()
	require.NoError(t, s.AddJob(&namedJob{name: "a"}, "0 3 * * *"))
	require.NoError(t, s.AddJob(&namedJob{name: "b"}, "@hourly"))
	assert.ElementsMatch(t, []string{"a", "b"}, s.Jobs())

	require.Error(t, s.AddJob(&namedJob{name: "a"}, "0 4 * * *"))
	require.Error(t, s.AddJob(&namedJob{name: "c"}, "not a spec"))
}

func TestCronScheduler_WrapRunsJob(t *testing.T) {
	s := NewCronScheduler()
	j := &namedJob{name: "a"}
	fn := s.wrap(j, "@every 1h")
	fn()
	fn()
	assert.Equal(t, 2, j.runs)
}

func TestCronScheduler_StartStop(t *testing.T) {
	s := NewCronScheduler()
	require.NoError(t, s.AddJob(&namedJob{name: "a"}, "@every 1h"))
	s.Start(context.Background())
	s.Stop()
}
