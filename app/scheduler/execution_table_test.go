package scheduler

import (
	"testing"
	"time"

	"github.com/dueflow/dueflow/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecutionTable(t *testing.T) {
	t.Run("register get remove", func(t *testing.T) {
		table := NewExecutionTable()
		exec := &CampaignExecution{CampaignID: 7, Status: ExecutionRunning}

		table.Register(exec)
		assert.Equal(t, 1, table.Len())
		assert.Same(t, exec, table.Get(7))

		table.Remove(7)
		assert.Equal(t, 0, table.Len())
		assert.Nil(t, table.Get(7))

		table.Remove(7)
	})

	t.Run("register replaces an existing entry", func(t *testing.T) {
		table := NewExecutionTable()
		table.Register(&CampaignExecution{CampaignID: 3, CurrentStep: 0})
		table.Register(&CampaignExecution{CampaignID: 3, CurrentStep: 2})

		assert.Equal(t, 1, table.Len())
		assert.Equal(t, 2, table.Get(3).CurrentStep)
	})

	t.Run("list follows insertion order", func(t *testing.T) {
		table := NewExecutionTable()
		for _, id := range []uint{5, 2, 9} {
			table.Register(&CampaignExecution{CampaignID: id})
		}
		table.Remove(2)
		table.Register(&CampaignExecution{CampaignID: 1})

		var got []uint
		for _, exec := range table.List() {
			got = append(got, exec.CampaignID)
		}
		assert.Equal(t, []uint{5, 9, 1}, got)
	})
}

func TestCampaignExecution_PauseResume(t *testing.T) {
	now := utils.UTCNow()

	t.Run("pause without deadline stays paused", func(t *testing.T) {
		exec := &CampaignExecution{Status: ExecutionRunning}
		exec.Pause(nil)

		assert.Equal(t, ExecutionPaused, exec.Status)
		assert.False(t, exec.ResumeIfExpired(now.Add(24*time.Hour)))
		assert.Equal(t, ExecutionPaused, exec.Status)
	})

	t.Run("pause with deadline auto resumes after it passes", func(t *testing.T) {
		exec := &CampaignExecution{Status: ExecutionRunning}
		until := now.Add(time.Hour)
		exec.Pause(&until)

		assert.False(t, exec.ResumeIfExpired(now.Add(30*time.Minute)))
		assert.Equal(t, ExecutionPaused, exec.Status)

		require.True(t, exec.ResumeIfExpired(now.Add(2*time.Hour)))
		assert.Equal(t, ExecutionRunning, exec.Status)
		assert.Nil(t, exec.PausedUntil)
		assert.True(t, exec.IsDue(now.Add(2*time.Hour)))
	})

	t.Run("resume makes the execution due immediately", func(t *testing.T) {
		exec := &CampaignExecution{Status: ExecutionPaused, NextDue: now.Add(48 * time.Hour)}
		exec.Resume()

		assert.Equal(t, ExecutionRunning, exec.Status)
		assert.True(t, exec.IsDue(utils.UTCNow()))
	})
}

func TestCampaignExecution_RequeueIfStalled(t *testing.T) {
	now := utils.UTCNow()

	t.Run("stalled execution is pushed forward intact", func(t *testing.T) {
		exec := &CampaignExecution{
			Status:       ExecutionRunning,
			CurrentStep:  2,
			TasksCreated: 1,
			NextDue:      now.Add(-90 * time.Minute),
		}

		require.True(t, exec.RequeueIfStalled(now, time.Hour, 5*time.Minute))
		assert.Equal(t, now.Add(5*time.Minute), exec.NextDue)
		assert.Equal(t, 2, exec.CurrentStep, "requeue never touches the cursor")
		assert.Equal(t, 1, exec.TasksCreated)
	})

	t.Run("recently due executions are left alone", func(t *testing.T) {
		exec := &CampaignExecution{Status: ExecutionRunning, NextDue: now.Add(-30 * time.Minute)}
		assert.False(t, exec.RequeueIfStalled(now, time.Hour, 5*time.Minute))
	})

	t.Run("only running executions requeue", func(t *testing.T) {
		for _, status := range []ExecutionStatus{ExecutionPaused, ExecutionFailed, ExecutionCompleted} {
			exec := &CampaignExecution{Status: status, NextDue: now.Add(-2 * time.Hour)}
			assert.False(t, exec.RequeueIfStalled(now, time.Hour, 5*time.Minute), string(status))
		}
	})
}
