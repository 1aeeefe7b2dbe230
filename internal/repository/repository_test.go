package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"photo-frame-portal/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupPostgres starts a throwaway Postgres, applies the schema and returns a pool
func setupPostgres(t *testing.T) *pgxpool.Pool {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping container-based test in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()
	req := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "frame",
			"POSTGRES_PASSWORD": "frame",
			"POSTGRES_DB":       "frame",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err, "failed to start postgres container")
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("Warning: failed to terminate postgres container: %v", err)
		}
	})

	endpoint, err := container.PortEndpoint(ctx, "5432/tcp", "")
	require.NoError(t, err)

	db, err := pgxpool.New(ctx, fmt.Sprintf("postgres://frame:frame@%s/frame?sslmode=disable", endpoint))
	require.NoError(t, err)
	t.Cleanup(db.Close)

	require.NoError(t, Migrate(ctx, db))
	require.NoError(t, Migrate(ctx, db), "schema must be re-appliable")
	return db
}

func newUser(t *testing.T, repo *UserRepository, email string) *models.User {
	t.Helper()
	u := &models.User{ID: uuid.NewString(), Email: email, PasswordHash: "hash", CreatedAt: time.Now()}
	require.NoError(t, repo.Create(context.Background(), u))
	return u
}

func newPair(code string) *models.Pair {
	return &models.Pair{ID: uuid.NewString(), PairCode: code, CreatedAt: time.Now()}
}

func member(pair *models.Pair, user *models.User, role models.DeviceRole, name string) *models.PairUser {
	return &models.PairUser{
		ID:          uuid.NewString(),
		PairID:      pair.ID,
		UserID:      user.ID,
		DeviceRole:  role,
		DisplayName: name,
		CreatedAt:   time.Now(),
	}
}

func TestRepositories(t *testing.T) {
	db := setupPostgres(t)
	ctx := context.Background()

	users := NewUserRepository(db)
	pairs := NewPairRepository(db)
	photos := NewPhotoRepository(db)
	events := NewEventRepository(db)

	alex := newUser(t, users, "alex@example.com")
	blair := newUser(t, users, "blair@example.com")
	casey := newUser(t, users, "casey@example.com")

	t.Run("users", func(t *testing.T) {
		err := users.Create(ctx, &models.User{ID: uuid.NewString(), Email: "alex@example.com", PasswordHash: "x", CreatedAt: time.Now()})
		assert.ErrorIs(t, err, ErrDuplicateEmail)

		got, err := users.GetByEmail(ctx, "alex@example.com")
		require.NoError(t, err)
		assert.Equal(t, alex.ID, got.ID)
		assert.Nil(t, got.PushToken)

		_, err = users.GetByID(ctx, uuid.NewString())
		assert.ErrorIs(t, err, ErrNotFound)
	})

	pair := newPair("QR7K2M")

	t.Run("create pair", func(t *testing.T) {
		require.NoError(t, pairs.CreateWithOwner(ctx, pair, member(pair, alex, models.RoleA, "Alex")))

		id, err := pairs.LookupPairIDByCode(ctx, "QR7K2M")
		require.NoError(t, err)
		assert.Equal(t, pair.ID, id)

		st, err := pairs.GetState(ctx, pair.ID)
		require.NoError(t, err)
		assert.Equal(t, 0, st.CurrentIndex)
		assert.Equal(t, int64(0), st.NavSeq)

		_, err = pairs.LookupPairIDByCode(ctx, "ZZZZZZ")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("code collision rolls back", func(t *testing.T) {
		clash := newPair("QR7K2M")
		err := pairs.CreateWithOwner(ctx, clash, member(clash, casey, models.RoleA, "Casey"))
		assert.ErrorIs(t, err, ErrDuplicateCode)

		_, _, err = pairs.GetMembership(ctx, casey.ID)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("join constraints", func(t *testing.T) {
		require.NoError(t, pairs.AddMember(ctx, member(pair, blair, models.RoleB, "Blair")))

		err := pairs.AddMember(ctx, member(pair, casey, models.RoleB, "Casey"))
		assert.ErrorIs(t, err, ErrRoleTaken)

		other := newPair("HJ4K9P")
		require.NoError(t, pairs.CreateWithOwner(ctx, other, member(other, casey, models.RoleA, "Casey")))
		err = pairs.AddMember(ctx, member(other, blair, models.RoleB, "Blair"))
		assert.ErrorIs(t, err, ErrAlreadyPaired)

		m, p, err := pairs.GetMembership(ctx, blair.ID)
		require.NoError(t, err)
		assert.Equal(t, models.RoleB, m.DeviceRole)
		assert.Equal(t, "QR7K2M", p.PairCode)

		members, err := pairs.GetMembers(ctx, pair.ID)
		require.NoError(t, err)
		require.Len(t, members, 2)
		assert.Equal(t, "Alex", members[0].DisplayName)
		assert.Equal(t, "Blair", members[1].DisplayName)
	})

	t.Run("push token", func(t *testing.T) {
		token, err := pairs.GetPushToken(ctx, pair.ID, models.RoleB)
		require.NoError(t, err)
		assert.Nil(t, token)

		device := "a1b2c3"
		require.NoError(t, users.UpdatePushToken(ctx, blair.ID, &device))
		token, err = pairs.GetPushToken(ctx, pair.ID, models.RoleB)
		require.NoError(t, err)
		require.NotNil(t, token)
		assert.Equal(t, device, *token)

		assert.ErrorIs(t, users.UpdatePushToken(ctx, uuid.NewString(), nil), ErrNotFound)
	})

	t.Run("photos", func(t *testing.T) {
		for i, order := range []int{1, 0, 2} {
			require.NoError(t, photos.Create(ctx, &models.Photo{
				ID:           uuid.NewString(),
				PairID:       pair.ID,
				StoragePath:  fmt.Sprintf("%s/1760000000000_%d.jpg", pair.ID, i),
				Filename:     fmt.Sprintf("1760000000000_%d.jpg", i),
				DisplayOrder: order,
				UploadedBy:   alex.ID,
				CreatedAt:    time.Now(),
			}))
		}

		count, err := photos.CountByPairID(ctx, pair.ID)
		require.NoError(t, err)
		assert.Equal(t, 3, count)

		list, err := photos.ListByPairID(ctx, pair.ID)
		require.NoError(t, err)
		require.Len(t, list, 3)
		for i, p := range list {
			assert.Equal(t, i, p.DisplayOrder)
		}

		require.NoError(t, photos.Delete(ctx, list[0].ID))
		assert.ErrorIs(t, photos.Delete(ctx, list[0].ID), ErrNotFound)
		_, err = photos.GetByID(ctx, list[0].ID)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("events", func(t *testing.T) {
		var seqs []int64
		for i := 0; i < 3; i++ {
			payload, _ := json.Marshal(models.PhotoNavPayload{Index: i})
			e := &models.Event{PairID: pair.ID, Sender: models.RoleA, EventType: models.EventPhotoNav, Payload: payload}
			require.NoError(t, events.Create(ctx, e))
			seqs = append(seqs, e.Seq)
		}
		assert.Less(t, seqs[0], seqs[1])
		assert.Less(t, seqs[1], seqs[2])

		replay, err := events.ListSince(ctx, pair.ID, seqs[0], 1)
		require.NoError(t, err)
		require.Len(t, replay, 1)
		assert.Equal(t, seqs[1], replay[0].Seq)
		assert.JSONEq(t, `{"index":1}`, string(replay[0].Payload))
	})

	t.Run("nav state ignores older seq", func(t *testing.T) {
		require.NoError(t, pairs.UpdateNavState(ctx, pair.ID, 2, 50))
		require.NoError(t, pairs.UpdateNavState(ctx, pair.ID, 1, 40))

		st, err := pairs.GetState(ctx, pair.ID)
		require.NoError(t, err)
		assert.Equal(t, 2, st.CurrentIndex)
		assert.Equal(t, int64(50), st.NavSeq)
	})
}
