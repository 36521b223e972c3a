package document

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HyojaeJeon/vietnamvisa24-sub001/internal/model"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name       string
		role       model.DocumentRole
		file       File
		wantReason string
	}{
		{
			name: "passport jpeg within limit",
			role: model.RolePassport,
			file: File{Name: "p.jpg", Size: 9 << 20, Type: "image/jpeg"},
		},
		{
			name: "passport pdf allowed",
			role: model.RolePassport,
			file: File{Name: "p.pdf", Size: 1 << 20, Type: "application/pdf"},
		},
		{
			name:       "passport over ten megabytes",
			role:       model.RolePassport,
			file:       File{Name: "p.jpg", Size: 10<<20 + 1, Type: "image/jpeg"},
			wantReason: "10MB",
		},
		{
			name: "photo png within limit",
			role: model.RolePhoto,
			file: File{Name: "f.png", Size: 5 << 20, Type: "image/png"},
		},
		{
			name:       "photo over five megabytes",
			role:       model.RolePhoto,
			file:       File{Name: "f.png", Size: 5<<20 + 1, Type: "image/png"},
			wantReason: "5MB",
		},
		{
			name:       "photo pdf rejected",
			role:       model.RolePhoto,
			file:       File{Name: "f.pdf", Size: 1 << 20, Type: "application/pdf"},
			wantReason: "not allowed",
		},
		{
			name:       "executable rejected",
			role:       model.RolePassport,
			file:       File{Name: "p.exe", Size: 1024, Type: "application/octet-stream"},
			wantReason: "not allowed",
		},
		{
			name:       "per-person photo role uses photo limits",
			role:       model.PhotoRole(1),
			file:       File{Name: "f.png", Size: 6 << 20, Type: "image/png"},
			wantReason: "5MB",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.role, tt.file)
			if tt.wantReason == "" {
				assert.NoError(t, err)
				return
			}
			var rej *RejectionError
			require.ErrorAs(t, err, &rej)
			assert.Equal(t, tt.role, rej.Role)
			assert.Contains(t, rej.Reason, tt.wantReason)
		})
	}
}

func TestMaxSizeFor(t *testing.T) {
	assert.Equal(t, int64(MaxPhotoSize), MaxSizeFor(model.RolePhoto))
	assert.Equal(t, int64(MaxPhotoSize), MaxSizeFor(model.PhotoRole(2)))
	assert.Equal(t, int64(MaxDocumentSize), MaxSizeFor(model.RolePassport))
	assert.Equal(t, int64(MaxDocumentSize), MaxSizeFor(model.PassportRole(0)))
}

func TestEncodeDataURI(t *testing.T) {
	f := File{Type: "image/png", Data: []byte{0x89, 0x50, 0x4e, 0x47}}
	uri := EncodeDataURI(f)
	assert.True(t, strings.HasPrefix(uri, "data:image/png;base64,"))
	assert.Equal(t, "data:image/png;base64,iVBORw==", uri)
}

type stubRecognizer struct {
	fields map[string]string
	err    error
}

func (s *stubRecognizer) ExtractFields(_ context.Context, _ string, _ []byte) (map[string]string, error) {
	return s.fields, s.err
}

type stubVerifier struct {
	verdict string
	err     error
}

func (s *stubVerifier) VerifyPhoto(_ context.Context, _ string, _ []byte) (string, error) {
	return s.verdict, s.err
}

// collectCommit returns a commit callback that records the committed record
// and a wait function for it.
func collectCommit() (func(model.DocumentRole, model.DocumentRecord) bool, func(t *testing.T) model.DocumentRecord) {
	var (
		mu   sync.Mutex
		rec  model.DocumentRecord
		done = make(chan struct{})
	)
	commit := func(_ model.DocumentRole, r model.DocumentRecord) bool {
		mu.Lock()
		rec = r
		mu.Unlock()
		close(done)
		return true
	}
	wait := func(t *testing.T) model.DocumentRecord {
		t.Helper()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Fatal("conversion did not complete")
		}
		mu.Lock()
		defer mu.Unlock()
		return rec
	}
	return commit, wait
}

func TestPipeline_Ingest(t *testing.T) {
	t.Run("rejected file never reaches commit", func(t *testing.T) {
		p := NewPipeline(nil, nil)
		err := p.Ingest(context.Background(), model.RolePhoto,
			File{Name: "f.pdf", Size: 1024, Type: "application/pdf"},
			func(model.DocumentRole, model.DocumentRecord) bool {
				t.Error("commit should not run for a rejected file")
				return true
			})
		var rej *RejectionError
		require.ErrorAs(t, err, &rej)
	})

	t.Run("accepted file commits an encoded record", func(t *testing.T) {
		p := NewPipeline(nil, nil)
		commit, wait := collectCommit()

		err := p.Ingest(context.Background(), model.RolePassport,
			File{Name: "p.jpg", Size: 4, Type: "image/jpeg", Data: []byte("abcd")}, commit)
		require.NoError(t, err)

		rec := wait(t)
		assert.Equal(t, "p.jpg", rec.FileName)
		assert.Equal(t, int64(4), rec.FileSize)
		assert.Equal(t, "image/jpeg", rec.FileType)
		assert.Equal(t, "data:image/jpeg;base64,YWJjZA==", rec.FileData)
		assert.False(t, rec.UploadedAt.IsZero())
	})

	t.Run("passport records carry normalized extracted fields", func(t *testing.T) {
		p := NewPipeline(&stubRecognizer{fields: map[string]string{
			"passport_no": "M1234567",
			"surname":     "HONG",
		}}, nil)
		commit, wait := collectCommit()

		err := p.Ingest(context.Background(), model.RolePassport,
			File{Name: "p.jpg", Size: 4, Type: "image/jpeg", Data: []byte("abcd")}, commit)
		require.NoError(t, err)

		rec := wait(t)
		assert.Equal(t, "M1234567", rec.ExtractedInfo["passportNo"])
		assert.Equal(t, "HONG", rec.ExtractedInfo["surname"])
	})

	t.Run("recognition failure does not block acceptance", func(t *testing.T) {
		p := NewPipeline(&stubRecognizer{err: context.DeadlineExceeded}, nil)
		commit, wait := collectCommit()

		err := p.Ingest(context.Background(), model.RolePassport,
			File{Name: "p.jpg", Size: 4, Type: "image/jpeg", Data: []byte("abcd")}, commit)
		require.NoError(t, err)

		rec := wait(t)
		assert.Equal(t, "p.jpg", rec.FileName)
		assert.Nil(t, rec.ExtractedInfo)
	})

	t.Run("photo records carry the suitability verdict", func(t *testing.T) {
		p := NewPipeline(nil, &stubVerifier{verdict: "SUITABLE"})
		commit, wait := collectCommit()

		err := p.Ingest(context.Background(), model.RolePhoto,
			File{Name: "f.png", Size: 4, Type: "image/png", Data: []byte("abcd")}, commit)
		require.NoError(t, err)

		rec := wait(t)
		assert.Equal(t, "SUITABLE", rec.ValidationResult)
	})

	t.Run("overlapping upload for the same role is rejected", func(t *testing.T) {
		p := NewPipeline(nil, nil)
		release := make(chan struct{})
		committed := make(chan struct{})

		err := p.Ingest(context.Background(), model.RolePhoto,
			File{Name: "f.png", Size: 4, Type: "image/png", Data: []byte("abcd")},
			func(model.DocumentRole, model.DocumentRecord) bool {
				<-release
				close(committed)
				return true
			})
		require.NoError(t, err)
		assert.True(t, p.Pending(model.RolePhoto))

		err = p.Ingest(context.Background(), model.RolePhoto,
			File{Name: "g.png", Size: 4, Type: "image/png", Data: []byte("abcd")},
			func(model.DocumentRole, model.DocumentRecord) bool { return true })
		var rej *RejectionError
		require.ErrorAs(t, err, &rej)
		assert.Contains(t, rej.Reason, "already in progress")

		close(release)
		<-committed
		assert.Eventually(t, func() bool {
			return !p.Pending(model.RolePhoto)
		}, 5*time.Second, 10*time.Millisecond)
	})

	t.Run("uploads for different roles proceed independently", func(t *testing.T) {
		p := NewPipeline(nil, nil)
		commitA, waitA := collectCommit()
		commitB, waitB := collectCommit()

		require.NoError(t, p.Ingest(context.Background(), model.PassportRole(0),
			File{Name: "a.jpg", Size: 1, Type: "image/jpeg", Data: []byte("a")}, commitA))
		require.NoError(t, p.Ingest(context.Background(), model.PassportRole(1),
			File{Name: "b.jpg", Size: 1, Type: "image/jpeg", Data: []byte("b")}, commitB))

		assert.Equal(t, "a.jpg", waitA(t).FileName)
		assert.Equal(t, "b.jpg", waitB(t).FileName)
	})
}
