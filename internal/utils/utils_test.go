package utils

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm/logger"
)

type recordingLogger struct {
	logger.Interface
	traced []string
}

func (r *recordingLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	sql, _ := fc()
	r.traced = append(r.traced, sql)
}

func TestQuietGormLogger(t *testing.T) {
	rec := &recordingLogger{Interface: logger.Discard}
	l := NewQuietGormLogger(rec, "task.archived =")

	scan := func() (string, int64) {
		return "SELECT * FROM reminder JOIN task ON task.id = reminder.task_id WHERE reminder.sent = false AND task.archived = false", 3
	}
	other := func() (string, int64) { return "UPDATE reminder SET sent = true", 1 }
	lookup := func() (string, int64) {
		return "SELECT * FROM reminder JOIN task ON task.id = reminder.task_id WHERE reminder.id = 4 LIMIT 1", 1
	}

	l.Trace(context.Background(), time.Now(), scan, nil)
	assert.Empty(t, rec.traced)

	l.Trace(context.Background(), time.Now(), scan, errors.New("boom"))
	l.Trace(context.Background(), time.Now().Add(-2*time.Second), scan, nil)
	l.Trace(context.Background(), time.Now(), other, nil)

	l.Trace(context.Background(), time.Now(), lookup, nil)

	require.Len(t, rec.traced, 4)
	assert.Contains(t, rec.traced[2], "UPDATE reminder SET sent = true")
	assert.Contains(t, rec.traced[2], "[Caller: ")
	assert.Contains(t, rec.traced[3], "WHERE reminder.id = 4")
}

func TestParseIDParam(t *testing.T) {
	gin.SetMode(gin.TestMode)
	tests := []struct {
		raw     string
		want    uint
		wantErr bool
	}{
		{"12", 12, false},
		{"0", 0, true},
		{"-3", 0, true},
		{"abc", 0, true},
	}
	for _, tt := range tests {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		c.Params = gin.Params{{Key: "reminder_id", Value: tt.raw}}
		got, err := ParseIDParam(c, "reminder_id")
		if tt.wantErr {
			assert.Error(t, err, tt.raw)
			continue
		}
		assert.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
}

func TestQueryLimit(t *testing.T) {
	gin.SetMode(gin.TestMode)
	tests := map[string]int{
		"":            100,
		"?limit=5":    5,
		"?limit=0":    100,
		"?limit=x":    100,
		"?limit=9999": 500,
	}
	for query, want := range tests {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		c.Request = httptest.NewRequest("GET", "/reminders/history"+query, nil)
		assert.Equal(t, want, QueryLimit(c, 100, 500), query)
	}
}
