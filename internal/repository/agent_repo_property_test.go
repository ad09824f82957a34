package repository

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"sort"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/agentview/console/internal/db"
	"github.com/agentview/console/internal/model"
)

// generateID generates a unique ID for testing.
func generateID() string {
	b := make([]byte, 16)
	rand.Read(b)
	return hex.EncodeToString(b)
}

// For any valid registration, the agent is persisted and can be retrieved by
// both ID and name with all fields intact.
func TestAgentCreationIntegrityProperty(t *testing.T) {
	testDB, err := db.NewTestDB()
	if err != nil {
		t.Fatalf("failed to create test db: %v", err)
	}
	defer testDB.Close()

	repo := NewAgentRepository(testDB)
	ctx := context.Background()

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	nonEmptyString := gen.AlphaString().SuchThat(func(s string) bool {
		return len(s) > 0 && len(s) <= 100
	})

	properties.Property("agent registration persists and can be retrieved", prop.ForAll(
		func(namePrefix, task string) bool {
			// Names are unique; suffix with a fresh ID to avoid collisions
			// across iterations
			name := namePrefix + "-" + generateID()

			agent := &model.Agent{
				ID:        generateID(),
				Name:      name,
				Task:      task,
				Status:    model.AgentStatusRunning,
				CreatedAt: time.Now(),
				UpdatedAt: time.Now(),
			}

			if err := repo.Create(ctx, agent); err != nil {
				t.Logf("failed to create agent: %v", err)
				return false
			}

			byID, err := repo.GetByID(ctx, agent.ID)
			if err != nil {
				t.Logf("failed to retrieve agent by ID: %v", err)
				return false
			}
			byName, err := repo.GetByName(ctx, name)
			if err != nil {
				t.Logf("failed to retrieve agent by name: %v", err)
				return false
			}

			ok := byID.ID == agent.ID &&
				byID.Name == name &&
				byID.Task == task &&
				byID.Status == model.AgentStatusRunning &&
				byName.ID == agent.ID

			// Cleanup for the next iteration
			repo.Delete(ctx, agent.ID)

			return ok
		},
		nonEmptyString,
		gen.AlphaString(),
	))

	properties.TestingRun(t)
}

// For any set of persisted log lines and any cursor, the replay query
// returns exactly the lines with a strictly greater timestamp, in ascending
// order.
func TestLogReplayWindowProperty(t *testing.T) {
	testDB, err := db.NewTestDB()
	if err != nil {
		t.Fatalf("failed to create test db: %v", err)
	}
	defer testDB.Close()

	repo := NewAgentRepository(testDB)
	ctx := context.Background()

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	properties.Property("replay returns exactly the lines after the cursor", prop.ForAll(
		func(timestamps []int64, cursor int64) bool {
			agent := &model.Agent{
				ID:        generateID(),
				Name:      "agent-" + generateID(),
				Status:    model.AgentStatusRunning,
				CreatedAt: time.Now(),
				UpdatedAt: time.Now(),
			}
			if err := repo.Create(ctx, agent); err != nil {
				t.Logf("failed to create agent: %v", err)
				return false
			}
			defer repo.Delete(ctx, agent.ID)

			var lines []model.LogLine
			for _, ts := range timestamps {
				lines = append(lines, model.LogLine{Content: "line", Timestamp: ts})
			}
			if err := repo.AppendLogs(ctx, agent.ID, lines); err != nil {
				t.Logf("failed to append logs: %v", err)
				return false
			}

			got, err := repo.ListLogsSince(ctx, agent.ID, cursor, len(timestamps)+1)
			if err != nil {
				t.Logf("failed to list logs: %v", err)
				return false
			}

			var want []int64
			for _, ts := range timestamps {
				if ts > cursor {
					want = append(want, ts)
				}
			}
			sort.Slice(want, func(i, j int) bool { return want[i] < want[j] })

			if len(got) != len(want) {
				return false
			}
			for i := range want {
				if got[i].Timestamp != want[i] {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.Int64Range(1, 10_000)),
		gen.Int64Range(0, 10_000),
	))

	properties.TestingRun(t)
}
