package sbk

import (
	"archive/tar"
	"fmt"
	"io"
	"path"
	"path/filepath"

	"github.com/klauspost/compress/gzip"
)

// ArchiveReport describes how the files of one archive group fared.
type ArchiveReport struct {
	Added      []string
	Failed     []string
	Compressed int
	Encrypted  int
}

// BuildArchive bundles the files of group into a tar+gzip archive named after
// the group directory. Each file is transformed first and its artifact is
// appended under dirName/<sub-path>/<artifact name>, then released. A file
// that cannot be transformed is skipped and reported; a failure writing the
// archive itself aborts the group.
func (p *Pipeline) BuildArchive(group ArchiveGroup, compress, encrypt bool) (*Artifact, *ArchiveReport, error) {
	report := &ArchiveReport{}
	if p.temp == nil {
		return nil, report, fmt.Errorf("no temp area configured")
	}

	dirName := filepath.Base(group.Dir)
	name := dirName + ".tar.gz"
	out, err := p.temp.Create(name)
	if err != nil {
		return nil, report, fmt.Errorf("creating archive file: %w", err)
	}
	abort := func(err error) (*Artifact, *ArchiveReport, error) {
		out.Close()
		p.temp.Remove(out.Name())
		return nil, report, fmt.Errorf("building archive %s: %w", name, err)
	}

	zw := gzip.NewWriter(out)
	tw := tar.NewWriter(zw)

	p.onStage(StageArchiving, group.Dir)
	for _, file := range group.Files {
		a, err := p.Prepare(file, compress, encrypt)
		if err != nil {
			p.logger.Error("transform failed, leaving file out of archive", "archive", name, "path", file, "error", err)
			report.Failed = append(report.Failed, file)
			continue
		}
		if a.Compressed {
			report.Compressed++
		}
		if a.Encrypted {
			report.Encrypted++
		}

		err = p.appendFile(tw, a, archiveEntryName(dirName, group.Dir, file, a.Name))
		p.Release(a)
		if err != nil {
			report.Failed = append(report.Failed, file)
			return abort(err)
		}
		report.Added = append(report.Added, file)
	}

	if err := tw.Close(); err != nil {
		return abort(err)
	}
	if err := zw.Close(); err != nil {
		return abort(err)
	}
	if err := out.Close(); err != nil {
		p.temp.Remove(out.Name())
		return nil, report, fmt.Errorf("closing archive %s: %w", name, err)
	}
	return &Artifact{Path: out.Name(), Name: name, Temp: true}, report, nil
}

func (p *Pipeline) appendFile(tw *tar.Writer, a *Artifact, entryName string) error {
	info, err := p.fsmgr.Stat(a.Path)
	if err != nil {
		return err
	}
	hdr, err := tar.FileInfoHeader(info, "")
	if err != nil {
		return err
	}
	hdr.Name = entryName

	f, err := p.fsmgr.Open(a.Path)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := tw.WriteHeader(hdr); err != nil {
		return err
	}
	if _, err := io.CopyN(tw, f, hdr.Size); err != nil {
		return fmt.Errorf("appending %s: %w", entryName, err)
	}
	return nil
}

// archiveEntryName keeps the file's sub-path below the group directory.
func archiveEntryName(dirName, groupDir, file, artifactName string) string {
	sub, err := filepath.Rel(groupDir, filepath.Dir(file))
	if err != nil || sub == "." || outsideBase(sub) {
		return path.Join(dirName, artifactName)
	}
	return path.Join(dirName, filepath.ToSlash(sub), artifactName)
}
