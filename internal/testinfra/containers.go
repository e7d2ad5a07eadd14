//go:build integration

package testinfra

import (
	"context"
	"fmt"
	"os/exec"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	PostgresImage = "postgres:16-alpine"
	Neo4jImage    = "neo4j:5-community"
	RedisImage    = "redis:7-alpine"

	Neo4jPassword = "integration-pass"
)

// SkipIfNoDocker saute le test si le daemon Docker n'est pas joignable.
func SkipIfNoDocker(t *testing.T) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if exec.CommandContext(ctx, "docker", "info").Run() != nil {
		t.Skip("Skipping test: Docker not available")
	}
}

// StartPostgres renvoie une URL de connexion. Le conteneur est arrêté au Cleanup du test.
func StartPostgres(t *testing.T) string {
	t.Helper()
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        PostgresImage,
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "social",
			"POSTGRES_PASSWORD": "social",
			"POSTGRES_DB":       "social_db",
		},
		// Postgres redémarre une fois après l'init : on attend le 2e message
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}
	return fmt.Sprintf("postgres://social:social@%s/social_db?sslmode=disable", start(t, ctx, req))
}

// StartNeo4j renvoie l'URI bolt.
func StartNeo4j(t *testing.T) string {
	t.Helper()
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        Neo4jImage,
		ExposedPorts: []string{"7687/tcp"},
		Env:          map[string]string{"NEO4J_AUTH": "neo4j/" + Neo4jPassword},
		WaitingFor:   wait.ForLog("Started.").WithStartupTimeout(120 * time.Second),
	}
	return "neo4j://" + start(t, ctx, req)
}

// StartRedis renvoie l'adresse host:port.
func StartRedis(t *testing.T) string {
	t.Helper()
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        RedisImage,
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
	}
	return start(t, ctx, req)
}

func start(t *testing.T, ctx context.Context, req testcontainers.ContainerRequest) string {
	t.Helper()
	SkipIfNoDocker(t)

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("start %s: %v", req.Image, err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("Warning: failed to terminate container: %v", err)
		}
	})

	// Un seul port exposé par conteneur : Endpoint renvoie host:port
	endpoint, err := container.Endpoint(ctx, "")
	if err != nil {
		t.Fatalf("get container endpoint: %v", err)
	}
	return endpoint
}
