package main

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/jpeg"
	"io"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"

	"go-passport-reader/document"
	"go-passport-reader/models"
	"go-passport-reader/nfc"
	"go-passport-reader/nfc/nfctest"
)

// startTestServer serves the operator API for a reader on an httptest server
// and returns its base URL.
func startTestServer(t *testing.T, reader ChipReader, storage ReportStorage, submitter OutcomeSubmitter) string {
	t.Helper()

	testState := &ServerState{
		readService: NewReadService(reader, storage, submitter, language.English),
		storage:     storage,
		language:    language.English,
	}
	srv := httptest.NewServer(newRouter(testState))
	t.Cleanup(srv.Close)
	return srv.URL
}

func specimenEngine(card *nfctest.Card) *nfc.Engine {
	return nfc.NewEngine(card, nfc.PlainAuthenticator{})
}

// photoCard is the specimen passport with a decodable JPEG face.
func photoCard(t *testing.T) *nfctest.Card {
	t.Helper()
	return nfctest.NewCard(
		nfc.EncodeCOM("0107", 0x61, 0x75),
		document.EncodeDG1(nfctest.SpecimenMRZ),
		nfctest.EncodeDG2(noiseJPEG(t, 64, 80)),
		nil,
	)
}

func noiseJPEG(t *testing.T, w, h int) []byte {
	t.Helper()
	rng := rand.New(rand.NewSource(7))
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{uint8(rng.Intn(256)), uint8(rng.Intn(256)), uint8(rng.Intn(256)), 0xFF})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}))
	return buf.Bytes()
}

func specimenReadRequest(submit bool) models.ReadRequest {
	keys := nfctest.SpecimenKeys()
	return models.ReadRequest{
		DocumentNumber: keys.DocumentNumber,
		DateOfBirth:    keys.DateOfBirth,
		DateOfExpiry:   keys.DateOfExpiry,
		Submit:         submit,
	}
}

func postJSON[T any](t *testing.T, url string, payload any) (*http.Response, []byte, *T) {
	t.Helper()

	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewBuffer(b)
	}
	resp, err := http.Post(url, "application/json", body)
	require.NoError(t, err)
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var v T
	_ = json.Unmarshal(respBody, &v)
	return resp, respBody, &v
}

func get(t *testing.T, url string) (*http.Response, []byte) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, body
}

func mustStatus(t *testing.T, resp *http.Response, want int, body []byte) {
	t.Helper()
	require.Equalf(t, want, resp.StatusCode, "body: %s", body)
}

// test doubles

type fakeSubmitter struct {
	mu       sync.Mutex
	calls    int
	response *models.NfcStoreResponse
	err      error
}

func (f *fakeSubmitter) SubmitOutcome(_ context.Context, _ nfc.ReadOutcome) (*models.NfcStoreResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.response, f.err
}

func (f *fakeSubmitter) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// blockingReader holds Read until release is closed.
type blockingReader struct {
	started chan struct{}
	release chan struct{}
}

func newBlockingReader() *blockingReader {
	return &blockingReader{started: make(chan struct{}), release: make(chan struct{})}
}

func (b *blockingReader) Read(_ context.Context, _ nfc.AccessKeys) nfc.ReadOutcome {
	close(b.started)
	<-b.release
	return nfc.NewFailure(nfc.StatusNFCNotAvailable, nfc.StageConnect, "", "no reader")
}
