package service

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"image/color"
	"sync"
	"testing"
	"time"

	"github.com/disintegration/imaging"
	"github.com/timmy/imagelens/internal/domain"
	"gorm.io/gorm"
)

func encodeImage(t *testing.T, width, height int, format imaging.Format) []byte {
	t.Helper()
	img := imaging.New(width, height, color.NRGBA{R: 200, G: 120, B: 40, A: 255})
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, format); err != nil {
		t.Fatalf("failed to encode fixture: %v", err)
	}
	return buf.Bytes()
}

// webpSolid640x480 is a lossless WebP whose every pixel is one literal
// color; each prefix code has a single symbol, so no pixel bits follow.
var webpSolid640x480 = []byte{
	0x52, 0x49, 0x46, 0x46, 0x18, 0x00, 0x00, 0x00, 0x57, 0x45, 0x42, 0x50,
	0x56, 0x50, 0x38, 0x4c, 0x0c, 0x00, 0x00, 0x00, 0x2f, 0x7f, 0xc2, 0x77,
	0x00, 0x28, 0x5e, 0x91, 0x8b, 0xd2, 0xff, 0x00,
}

// wrapICO places payload, usually a PNG, in a single-entry icon directory.
func wrapICO(payload []byte) []byte {
	var buf bytes.Buffer
	binary.Write(&buf, binary.LittleEndian, []uint16{0, 1, 1})
	// 0x0 means 256 or larger; the payload header carries the real size.
	buf.Write([]byte{0, 0, 0, 0})
	binary.Write(&buf, binary.LittleEndian, []uint16{1, 32})
	binary.Write(&buf, binary.LittleEndian, []uint32{uint32(len(payload)), 6 + 16})
	buf.Write(payload)
	return buf.Bytes()
}

type memArtifacts struct {
	mu      sync.Mutex
	objects map[string][]byte
	next    int
	saveErr   error
	readErr   error
	deleteErr error
	deleted   []string
}

func newMemArtifacts() *memArtifacts {
	return &memArtifacts{objects: make(map[string][]byte)}
}

func (m *memArtifacts) Save(_ context.Context, data []byte, filename string) (string, error) {
	if m.saveErr != nil {
		return "", m.saveErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.next++
	key := fmt.Sprintf("uploaded_images/%d-%s", m.next, filename)
	m.objects[key] = append([]byte(nil), data...)
	return key, nil
}

func (m *memArtifacts) Read(_ context.Context, key string) ([]byte, error) {
	if m.readErr != nil {
		return nil, m.readErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[key]
	if !ok {
		return nil, errors.New("no such object")
	}
	return data, nil
}

func (m *memArtifacts) Delete(_ context.Context, key string) error {
	if m.deleteErr != nil {
		return m.deleteErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	m.deleted = append(m.deleted, key)
	return nil
}

type memStore struct {
	mu        sync.Mutex
	records   map[uint]*domain.UploadRecord
	nextID    uint
	createErr error
	updateErr error
	updates   int
}

func newMemStore() *memStore {
	return &memStore{records: make(map[uint]*domain.UploadRecord)}
}

func (m *memStore) Create(_ context.Context, record *domain.UploadRecord) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	record.ID = m.nextID
	stored := *record
	m.records[record.ID] = &stored
	return nil
}

func (m *memStore) GetByID(_ context.Context, id uint) (*domain.UploadRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	out := *rec
	return &out, nil
}

func (m *memStore) UpdateDescription(_ context.Context, id uint, description string) error {
	if m.updateErr != nil {
		return m.updateErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	rec.Description = &description
	m.updates++
	return nil
}

func (m *memStore) List(_ context.Context, limit, offset int) ([]domain.UploadRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.UploadRecord
	for id := m.nextID; id > 0; id-- {
		rec, ok := m.records[id]
		if !ok {
			continue
		}
		if offset > 0 {
			offset--
			continue
		}
		if len(out) == limit {
			break
		}
		out = append(out, *rec)
	}
	return out, nil
}

type fakeDetector struct {
	detections domain.Detections
	err        error
	calls      int
	deadline   bool
}

func (f *fakeDetector) Detect(ctx context.Context, _ []byte) (domain.Detections, error) {
	f.calls++
	_, f.deadline = ctx.Deadline()
	return f.detections, f.err
}

type countingObserver struct {
	outcomes   []string
	detections int
}

func (c *countingObserver) ObserveDetection(time.Duration, error) { c.detections++ }
func (c *countingObserver) ObserveOutcome(outcome string) { c.outcomes = append(c.outcomes, outcome) }
