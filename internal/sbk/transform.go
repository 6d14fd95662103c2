package sbk

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// ErrEncryptFailed is returned when encryption keeps failing after the retry
// budget is spent.
var ErrEncryptFailed = errors.New("encryption failed")

// Artifact is the file handed to the uploader for one unit.
type Artifact struct {
	// Path is the file to read. It is the source file itself when no
	// transform was applied.
	Path string
	// Name is the logical file name used to build the remote key.
	Name string
	// Temp marks artifacts owned by the temp area.
	Temp bool

	Compressed bool
	Encrypted  bool
}

// Pipeline compresses and encrypts units before upload. Every temporary
// artifact it creates is removed once consumed, whether or not the unit
// succeeds.
type Pipeline struct {
	fsmgr       FilesystemManager
	temp        TempArea
	encryptor   Encryptor
	compression Compression
	retry       RetryPolicy
	logger      Logger
	onStage     func(stage Stage, path string)
}

// NewPipeline creates the transform pipeline for a job.
func NewPipeline(job *Job, fsmgr FilesystemManager, logger Logger) *Pipeline {
	compression := job.Compression
	if compression == "" {
		compression = CompressionGzip
	}
	return &Pipeline{
		fsmgr:       fsmgr,
		temp:        job.Temp,
		encryptor:   job.Encryptor,
		compression: compression,
		retry:       EncryptRetry,
		logger:      logger,
		onStage:     func(Stage, string) {},
	}
}

// Prepare applies the requested transforms to the file at path and returns
// the artifact to upload. With neither flag set the source file itself is
// returned and nothing is created.
func (p *Pipeline) Prepare(path string, compress, encrypt bool) (*Artifact, error) {
	a := &Artifact{Path: path, Name: filepath.Base(path)}

	if compress {
		p.onStage(StageCompressing, path)
		c, err := p.compress(a)
		if err != nil {
			return nil, fmt.Errorf("compressing %s: %w", path, err)
		}
		a = c
	}

	if encrypt {
		p.onStage(StageEncrypting, path)
		e, err := p.encrypt(a)
		p.Release(a)
		if err != nil {
			return nil, err
		}
		a = e
	}

	return a, nil
}

// Release removes a temporary artifact. Source files are never touched.
func (p *Pipeline) Release(a *Artifact) {
	if a == nil || !a.Temp {
		return
	}
	if err := p.temp.Remove(a.Path); err != nil {
		p.logger.Warn("removing temporary artifact", "path", a.Path, "error", err)
	}
}

func (p *Pipeline) compress(src *Artifact) (*Artifact, error) {
	if p.temp == nil {
		return nil, fmt.Errorf("no temp area configured")
	}
	in, err := p.fsmgr.Open(src.Path)
	if err != nil {
		return nil, err
	}
	defer in.Close()

	name := src.Name + p.compression.Extension()
	out, err := p.temp.Create(name)
	if err != nil {
		return nil, fmt.Errorf("creating temp file: %w", err)
	}
	if err := p.writeCompressed(out, in); err != nil {
		out.Close()
		p.temp.Remove(out.Name())
		return nil, err
	}
	if err := out.Close(); err != nil {
		p.temp.Remove(out.Name())
		return nil, fmt.Errorf("closing temp file: %w", err)
	}

	return &Artifact{Path: out.Name(), Name: name, Temp: true, Compressed: true}, nil
}

func (p *Pipeline) writeCompressed(w io.Writer, r io.Reader) error {
	if p.compression == CompressionZstd {
		enc, err := zstd.NewWriter(w)
		if err != nil {
			return fmt.Errorf("creating zstd writer: %w", err)
		}
		if _, err := io.Copy(enc, r); err != nil {
			enc.Close()
			return fmt.Errorf("writing zstd stream: %w", err)
		}
		return enc.Close()
	}

	zw := gzip.NewWriter(w)
	if _, err := io.Copy(zw, r); err != nil {
		zw.Close()
		return fmt.Errorf("writing gzip stream: %w", err)
	}
	return zw.Close()
}

// encrypt encrypts src into a new temp artifact under the retry policy.
// A failed attempt leaves no partial output behind.
func (p *Pipeline) encrypt(src *Artifact) (*Artifact, error) {
	if p.encryptor == nil {
		return nil, fmt.Errorf("%w: %s: no encryptor configured", ErrEncryptFailed, src.Path)
	}
	if p.temp == nil {
		return nil, fmt.Errorf("%w: %s: no temp area configured", ErrEncryptFailed, src.Path)
	}

	name := src.Name + p.encryptor.Extension()
	var out *Artifact
	err := p.retry.Do(func(attempt int) error {
		a, err := p.encryptOnce(src, name)
		if err != nil {
			p.logger.Warn("encryption attempt failed", "path", src.Path, "attempt", attempt, "error", err)
			return err
		}
		out = a
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrEncryptFailed, src.Path, err)
	}
	return out, nil
}

func (p *Pipeline) encryptOnce(src *Artifact, name string) (*Artifact, error) {
	in, err := p.fsmgr.Open(src.Path)
	if err != nil {
		return nil, err
	}
	defer in.Close()

	out, err := p.temp.Create(name)
	if err != nil {
		return nil, fmt.Errorf("creating temp file: %w", err)
	}
	if err := p.encryptor.Encrypt(in, out); err != nil {
		out.Close()
		p.temp.Remove(out.Name())
		return nil, err
	}
	if err := out.Close(); err != nil {
		p.temp.Remove(out.Name())
		return nil, fmt.Errorf("closing temp file: %w", err)
	}

	return &Artifact{Path: out.Name(), Name: name, Temp: true, Compressed: src.Compressed, Encrypted: true}, nil
}
