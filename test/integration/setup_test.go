package integration

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rakeshthakkuri/skin-disease-S/internal/domain/diagnosis"
	"github.com/rakeshthakkuri/skin-disease-S/internal/domain/identity"
	"github.com/rakeshthakkuri/skin-disease-S/internal/domain/prescription"
	"github.com/rakeshthakkuri/skin-disease-S/internal/domain/reminder"
	"github.com/rakeshthakkuri/skin-disease-S/internal/platform/auth"
	"github.com/rakeshthakkuri/skin-disease-S/internal/platform/blobstore"
	"github.com/rakeshthakkuri/skin-disease-S/internal/platform/classifier"
	"github.com/rakeshthakkuri/skin-disease-S/internal/platform/db"
	"github.com/rakeshthakkuri/skin-disease-S/internal/platform/generator"
	"github.com/rakeshthakkuri/skin-disease-S/internal/platform/translate"
)

// testDB holds the database shared by every test in the package.
type testDB struct {
	Pool          *pgxpool.Pool
	ConnStr       string
	MigrationsDir string
}

var globalDB *testDB

// TestMain uses TEST_DATABASE_URL when set and otherwise starts a throwaway
// container. Without either the suite is skipped.
func TestMain(m *testing.M) {
	ctx := context.Background()

	connStr := os.Getenv("TEST_DATABASE_URL")
	cleanup := func() {}
	if connStr == "" {
		if _, err := exec.LookPath("docker"); err != nil {
			fmt.Fprintln(os.Stderr, "skipping integration tests: docker not found and TEST_DATABASE_URL not set")
			os.Exit(0)
		}
		var err error
		connStr, cleanup, err = startPostgresContainer(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to start postgres container: %v\n", err)
			os.Exit(1)
		}
	}

	tdb, err := setupDatabase(ctx, connStr)
	if err != nil {
		cleanup()
		fmt.Fprintf(os.Stderr, "failed to set up database: %v\n", err)
		os.Exit(1)
	}

	globalDB = tdb
	code := m.Run()
	tdb.Pool.Close()
	cleanup()
	os.Exit(code)
}

// setupDatabase connects and applies every migration under migrations/.
func setupDatabase(ctx context.Context, connStr string) (*testDB, error) {
	migrationsDir := findMigrationsDir()

	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	migrator, err := db.NewMigrator(pool, os.DirFS(migrationsDir), "public")
	if err != nil {
		pool.Close()
		return nil, err
	}
	if _, err := migrator.Up(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return &testDB{Pool: pool, ConnStr: connStr, MigrationsDir: migrationsDir}, nil
}

// findMigrationsDir locates migrations/ relative to this file.
func findMigrationsDir() string {
	_, filename, _, _ := runtime.Caller(0)
	root := filepath.Join(filepath.Dir(filename), "..", "..")
	return filepath.Join(root, "migrations")
}

// stack is the service graph the server builds, over the shared pool.
type stack struct {
	diagnoses     *diagnosis.Service
	prescriptions *prescription.Service
	reminders     *reminder.Service
}

func newStack() *stack {
	pool := globalDB.Pool
	diagnoses := diagnosis.NewService(diagnosis.NewRepo(pool), classifier.Disabled{}, blobstore.NewInMemoryStore(), 0)
	prescriptions := prescription.NewService(prescription.NewRepo(pool), diagnoses, generator.NewRules(), translate.NewDictionary())
	prescriptions.SetGenerationTimeout(5 * time.Second)
	inTx := func(ctx context.Context, fn func(ctx context.Context) error) error {
		return db.WithTx(ctx, pool, fn)
	}
	return &stack{
		diagnoses:     diagnoses,
		prescriptions: prescriptions,
		reminders:     reminder.NewService(reminder.NewRepo(pool), prescriptions, inTx),
	}
}

// createUser inserts an account and returns it as a prescription viewer.
func createUser(t *testing.T, ctx context.Context, role string) prescription.Viewer {
	t.Helper()
	u := &identity.User{
		Email:        fmt.Sprintf("%s-%s@example.test", role, uuid.NewString()[:8]),
		PasswordHash: "not-a-real-hash",
		FullName:     "Integration " + role,
		SkinType:     "normal",
		Role:         role,
		Preferences:  map[string]interface{}{},
	}
	if err := identity.NewRepo(globalDB.Pool).Create(ctx, u); err != nil {
		t.Fatalf("create %s: %v", role, err)
	}
	return prescription.Viewer{UserID: u.ID, Doctor: role == auth.RoleDoctor}
}

// createDiagnosis stores a moderate diagnosis owned by userID.
func createDiagnosis(t *testing.T, ctx context.Context, userID uuid.UUID) uuid.UUID {
	t.Helper()
	d := &diagnosis.Diagnosis{
		UserID:             userID,
		Severity:           "moderate",
		Confidence:         0.62,
		SeverityScores:     map[string]float64{"mild": 0.2, "moderate": 0.62},
		LesionCounts:       map[string]int{"comedones": 15, "papules": 10, "pustules": 6},
		AcneType:           "inflammatory",
		AffectedAreas:      []string{"face"},
		RecommendedUrgency: diagnosis.Urgency("moderate"),
		ImageKey:           blobstore.ImageKey(userID, "face.jpg"),
		Metadata:           diagnosis.DefaultMetadata(),
	}
	if err := diagnosis.NewRepo(globalDB.Pool).Create(ctx, d); err != nil {
		t.Fatalf("create diagnosis: %v", err)
	}
	return d.ID
}
