//go:build e2e

package e2e

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/soapify-health/soapify/internal/api/handlers"
	"github.com/soapify-health/soapify/internal/jobs"
	"github.com/soapify-health/soapify/internal/llm"
	"github.com/soapify-health/soapify/internal/repository"
	"github.com/soapify-health/soapify/internal/server"
	"github.com/soapify-health/soapify/internal/service"
	"github.com/soapify-health/soapify/internal/storage"
	"github.com/soapify-health/soapify/internal/testutil"
)

// E2ETestEnv holds all resources needed for E2E tests
type E2ETestEnv struct {
	T            *testing.T
	Ctx          context.Context
	PostgresC    *testutil.PostgresContainer
	RustFSC      *testutil.RustFSContainer
	Pool         *pgxpool.Pool
	ServerURL    string
	ServerCloser func()
	S3Client     *storage.S3Client
	BinaryDir    string
	DoctorID     string
	APIToken     string
	HTTPClient   *http.Client
}

// SetupE2EEnv creates a full E2E test environment with containers, an HTTP
// server and a running generation worker. The LLM and embedding backends are
// in-process fakes so the pipeline runs to a terminal note without network
// calls to a model provider.
func SetupE2EEnv(t *testing.T) *E2ETestEnv {
	ctx := context.Background()

	pgC := testutil.NewPostgresContainer(ctx, t)
	s3C := testutil.NewRustFSContainer(ctx, t)

	pool := testutil.NewTestPool(ctx, t, pgC, "../../migrations")

	s3Client, err := storage.NewS3Client(ctx, storage.S3ClientConfig{
		Endpoint:        s3C.Endpoint(),
		Region:          "us-east-1",
		AccessKeyID:     "rustfsadmin",
		SecretAccessKey: "rustfsadmin",
		Bucket:          "test-attachments",
		UsePathStyle:    true,
	})
	if err != nil {
		t.Fatalf("failed to create S3 client: %v", err)
	}

	if err := s3Client.EnsureBucket(ctx); err != nil {
		t.Fatalf("failed to create bucket: %v", err)
	}

	port, err := getFreePort()
	if err != nil {
		t.Fatalf("failed to get free port: %v", err)
	}

	serverURL, serverCloser := startServer(t, pool, s3Client, port)

	env := &E2ETestEnv{
		T:            t,
		Ctx:          ctx,
		PostgresC:    pgC,
		RustFSC:      s3C,
		Pool:         pool,
		ServerURL:    serverURL,
		ServerCloser: serverCloser,
		S3Client:     s3Client,
		HTTPClient:   &http.Client{Timeout: 30 * time.Second},
	}

	return env
}

// Cleanup releases all resources
func (e *E2ETestEnv) Cleanup() {
	if e.ServerCloser != nil {
		e.ServerCloser()
	}
	if e.Pool != nil {
		e.Pool.Close()
	}
	if e.RustFSC != nil {
		e.RustFSC.Terminate(e.Ctx)
	}
	if e.PostgresC != nil {
		e.PostgresC.Terminate(e.Ctx)
	}
	if e.BinaryDir != "" {
		os.RemoveAll(e.BinaryDir)
	}
}

// Bootstrap registers a doctor account and keeps its API token. Registration
// is an admin operation with no HTTP endpoint, so it goes through the auth
// service directly, the same path the CLI uses.
func (e *E2ETestEnv) Bootstrap() {
	doctorRepo := repository.NewDoctorRepository(e.Pool)
	authSvc := service.NewAuthService(doctorRepo, &service.DefaultUUIDGenerator{})

	doctor, token, err := authSvc.RegisterDoctor(e.Ctx, "e2e@clinic.example", "E2E Doctor")
	if err != nil {
		e.T.Fatalf("failed to register doctor: %v", err)
	}

	e.DoctorID = doctor.ID
	e.APIToken = token
}

// RegisterDoctor registers an additional doctor and returns its ID and token.
func (e *E2ETestEnv) RegisterDoctor(email, fullName string) (string, string) {
	doctorRepo := repository.NewDoctorRepository(e.Pool)
	authSvc := service.NewAuthService(doctorRepo, &service.DefaultUUIDGenerator{})

	doctor, token, err := authSvc.RegisterDoctor(e.Ctx, email, fullName)
	if err != nil {
		e.T.Fatalf("failed to register doctor %s: %v", email, err)
	}
	return doctor.ID, token
}

// BuildBinaries builds the soapifyd binary
func (e *E2ETestEnv) BuildBinaries() {
	tmpDir, err := os.MkdirTemp("", "soapify-e2e-*")
	if err != nil {
		e.T.Fatalf("failed to create temp dir: %v", err)
	}
	e.BinaryDir = tmpDir

	cmd := exec.Command("go", "build", "-o", filepath.Join(tmpDir, "soapifyd"), "./cmd/soapifyd")
	cmd.Dir = "../.."
	if out, err := cmd.CombinedOutput(); err != nil {
		e.T.Fatalf("failed to build soapifyd: %v\n%s", err, out)
	}
}

// RunSoapifyd runs the soapifyd CLI command against the test database
func (e *E2ETestEnv) RunSoapifyd(workDir string, args ...string) (string, error) {
	cmd := exec.Command(filepath.Join(e.BinaryDir, "soapifyd"), args...)
	cmd.Dir = workDir
	cmd.Env = append(os.Environ(),
		fmt.Sprintf("SOAPIFY_DATABASE_URL=%s", e.PostgresC.ConnectionString()),
	)
	out, err := cmd.CombinedOutput()
	return string(out), err
}

// APIResponse represents a standard API response
type APIResponse struct {
	Data  json.RawMessage `json:"data"`
	Error string          `json:"error,omitempty"`
}

// Get performs a GET request
func (e *E2ETestEnv) Get(path, authToken string) (*APIResponse, error) {
	return e.doRequest("GET", path, nil, authToken)
}

// Post performs a POST request
func (e *E2ETestEnv) Post(path string, body interface{}, authToken string) (*APIResponse, error) {
	return e.doRequest("POST", path, body, authToken)
}

// Put performs a PUT request
func (e *E2ETestEnv) Put(path string, body interface{}, authToken string) (*APIResponse, error) {
	return e.doRequest("PUT", path, body, authToken)
}

func (e *E2ETestEnv) doRequest(method, path string, body interface{}, authToken string) (*APIResponse, error) {
	url := e.ServerURL + path

	var reqBody io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal body: %w", err)
		}
		reqBody = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequest(method, url, reqBody)
	if err != nil {
		return nil, err
	}

	if authToken != "" {
		req.Header.Set("Authorization", "Bearer "+authToken)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var apiResp APIResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		if resp.StatusCode >= 400 {
			return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(respBody))
		}
		return nil, err
	}

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, apiResp.Error)
	}

	return &apiResp, nil
}

// UploadFile uploads a file to the presigned URL
func (e *E2ETestEnv) UploadFile(uploadURL string, content []byte, contentType string) error {
	req, err := http.NewRequest("PUT", uploadURL, bytes.NewReader(content))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := e.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("upload failed with status %d: %s", resp.StatusCode, body)
	}

	return nil
}

// DownloadFile downloads a file from the presigned URL
func (e *E2ETestEnv) DownloadFile(downloadURL string) ([]byte, error) {
	resp, err := e.HTTPClient.Get(downloadURL)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download failed with status %d", resp.StatusCode)
	}

	return io.ReadAll(resp.Body)
}

// SHA256Sum calculates SHA256 hash of data
func SHA256Sum(data []byte) string {
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}

// WaitForTerminalNote polls GET /notes/{id} until the note leaves PROCESSING
// and returns its final payload.
func (e *E2ETestEnv) WaitForTerminalNote(noteID, authToken string, timeout time.Duration) map[string]interface{} {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		resp, err := e.Get("/notes/"+noteID, authToken)
		if err != nil {
			e.T.Fatalf("failed to poll note %s: %v", noteID, err)
		}

		var note map[string]interface{}
		if err := json.Unmarshal(resp.Data, &note); err != nil {
			e.T.Fatalf("failed to parse note response: %v", err)
		}

		if status, _ := note["status"].(string); status != "PROCESSING" {
			return note
		}
		time.Sleep(200 * time.Millisecond)
	}
	e.T.Fatalf("note %s did not reach a terminal state within %v", noteID, timeout)
	return nil
}

// startServer starts the HTTP server with all handlers and the generation
// worker, wired the same way serve does, with fake model backends.
func startServer(t *testing.T, pool *pgxpool.Pool, s3Client *storage.S3Client, port int) (string, func()) {
	noteRepo := repository.NewNoteRepository(pool)
	jobRepo := repository.NewGenerationJobRepository(pool)
	patientRepo := repository.NewPatientRepository(pool)
	doctorRepo := repository.NewDoctorRepository(pool)
	embeddingRepo := repository.NewNoteEmbeddingRepository(pool)
	attachmentRepo := repository.NewAttachmentRepository(pool)
	txRunner := repository.NewTxRunner(pool)

	embeddingClient := &fakeEmbeddingClient{}
	retrievalSvc := service.NewRetrievalService(embeddingClient, embeddingRepo)
	gateway := llm.NewGateway(&fakeLLMBackend{}, 5*time.Second)

	generationSvc := service.NewGenerationService(
		noteRepo, embeddingRepo, retrievalSvc, gateway, embeddingClient,
		2, 5*time.Second,
	)

	generationProcessor := jobs.NewGenerationWorker(jobRepo, generationSvc)
	generationWorker := jobs.NewWorker(generationProcessor, 100*time.Millisecond)
	go generationWorker.Start(context.Background())

	noteSvc := service.NewNoteService(noteRepo, jobRepo, patientRepo, txRunner)
	authSvc := service.NewAuthService(doctorRepo, &service.DefaultUUIDGenerator{})
	attachmentSvc := service.NewAttachmentService(attachmentRepo, noteRepo, &s3StorageAdapter{client: s3Client})

	router := server.NewRouter(server.RouterConfig{
		AuthValidator:     authSvc,
		NoteHandler:       handlers.NewNoteHandler(noteSvc),
		PatientHandler:    handlers.NewPatientHandler(noteSvc),
		AttachmentHandler: handlers.NewAttachmentHandler(attachmentSvc),
	})

	addr := fmt.Sprintf(":%d", port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			t.Logf("server error: %v", err)
		}
	}()

	serverURL := fmt.Sprintf("http://localhost:%d", port)
	waitForServer(t, serverURL, 10*time.Second)

	return serverURL, func() {
		generationWorker.Stop()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	}
}

func waitForServer(t *testing.T, url string, timeout time.Duration) {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		resp, err := http.Get(url + "/health")
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return
			}
		}
		time.Sleep(100 * time.Millisecond)
	}
	t.Fatalf("server did not start within %v", timeout)
}

func getFreePort() (int, error) {
	addr, err := net.ResolveTCPAddr("tcp", "localhost:0")
	if err != nil {
		return 0, err
	}

	l, err := net.ListenTCP("tcp", addr)
	if err != nil {
		return 0, err
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}

// s3StorageAdapter adapts S3Client to StorageClientInterface
type s3StorageAdapter struct {
	client *storage.S3Client
}

func (a *s3StorageAdapter) GenerateUploadURL(ctx context.Context, key string, contentType string) (string, error) {
	return a.client.GenerateUploadURL(ctx, key, contentType)
}

func (a *s3StorageAdapter) GenerateDownloadURL(ctx context.Context, key string) (string, error) {
	return a.client.GenerateDownloadURL(ctx, key)
}

func (a *s3StorageAdapter) DeleteObject(ctx context.Context, key string) error {
	return a.client.DeleteObject(ctx, key)
}

func (a *s3StorageAdapter) HeadObject(ctx context.Context, key string) (*service.ObjectMetadata, error) {
	meta, err := a.client.HeadObject(ctx, key)
	if err != nil {
		return nil, err
	}
	return &service.ObjectMetadata{
		ContentLength: meta.ContentLength,
		ContentType:   meta.ContentType,
		ETag:          meta.ETag,
	}, nil
}

// generatedSoapNote is what the fake backend returns. It satisfies the
// output validator: all four headers in order, vitals confined to OBJECTIVE,
// no markdown.
const generatedSoapNote = `SUBJECTIVE:
Patient reports a persistent dry cough for three days with mild fever at home and reduced appetite.
OBJECTIVE:
Temperature 37.8 °C, blood pressure 120/80 mmHg, pulse 82 bpm. Lungs clear on auscultation, throat mildly erythematous.
ASSESSMENT:
Likely viral upper respiratory tract infection. No signs of bacterial involvement at this time.
PLAN:
Rest and fluids, paracetamol as needed for fever. Follow up in one week or sooner if symptoms worsen.`

// fakeLLMBackend returns a fixed well-formed note, optionally prefaced with
// commentary to exercise the preface trim in the pipeline.
type fakeLLMBackend struct{}

func (b *fakeLLMBackend) Generate(ctx context.Context, prompt string) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	default:
	}
	return "Here is the requested note:\n" + generatedSoapNote, nil
}

// fakeEmbeddingClient derives a deterministic unit vector from the text so
// identical content always lands on the same point in the index.
type fakeEmbeddingClient struct{}

func (c *fakeEmbeddingClient) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	vector := make([]float32, 1536)
	sum := sha256.Sum256([]byte(text))
	axis := int(sum[0]) % len(vector)
	vector[axis] = 1
	return vector, nil
}
