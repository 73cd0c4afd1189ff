// Package securestore writes password-protected workspace snapshots. A
// snapshot is a tar.gz of selected files sealed with AES-GCM under an
// argon2id-derived key, so backend credentials can sit in a backup without
// being readable from disk.
package securestore

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/crypto/argon2"
)

var magic = []byte("EVRVLT1")

// ErrBadPassword covers both a wrong password and a tampered snapshot; GCM
// cannot tell them apart.
var ErrBadPassword = errors.New("wrong password or corrupted snapshot")

// Item maps one file or directory into the snapshot archive.
type Item struct {
	SrcPath     string
	ArchivePath string
}

type kdfParams struct {
	timeCost uint32
	memoryKB uint32
	threads  uint8
	salt     []byte
	nonce    []byte
}

func newKDFParams() (kdfParams, error) {
	p := kdfParams{
		timeCost: 2,
		memoryKB: 64 * 1024,
		threads:  4,
		salt:     make([]byte, 16),
		nonce:    make([]byte, 12),
	}
	if _, err := rand.Read(p.salt); err != nil {
		return p, err
	}
	if _, err := rand.Read(p.nonce); err != nil {
		return p, err
	}
	return p, nil
}

func (p kdfParams) key(password []byte) []byte {
	return argon2.IDKey(password, p.salt, p.timeCost, p.memoryKB, p.threads, 32)
}

func writeHeader(w io.Writer, p kdfParams) error {
	if _, err := w.Write(magic); err != nil {
		return err
	}
	for _, v := range []any{uint8(1), p.timeCost, p.memoryKB, p.threads, uint8(len(p.salt))} {
		if err := binary.Write(w, binary.LittleEndian, v); err != nil {
			return err
		}
	}
	if _, err := w.Write(p.salt); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint8(len(p.nonce))); err != nil {
		return err
	}
	_, err := w.Write(p.nonce)
	return err
}

func readHeader(r io.Reader) (kdfParams, error) {
	hdr := make([]byte, len(magic))
	if _, err := io.ReadFull(r, hdr); err != nil {
		return kdfParams{}, err
	}
	if !bytes.Equal(hdr, magic) {
		return kdfParams{}, errors.New("not an EldersVR snapshot file")
	}
	var version uint8
	if err := binary.Read(r, binary.LittleEndian, &version); err != nil {
		return kdfParams{}, err
	}
	if version != 1 {
		return kdfParams{}, fmt.Errorf("unsupported snapshot version %d", version)
	}

	var p kdfParams
	var saltLen, nonceLen uint8
	for _, v := range []any{&p.timeCost, &p.memoryKB, &p.threads, &saltLen} {
		if err := binary.Read(r, binary.LittleEndian, v); err != nil {
			return kdfParams{}, err
		}
	}
	p.salt = make([]byte, saltLen)
	if _, err := io.ReadFull(r, p.salt); err != nil {
		return kdfParams{}, err
	}
	if err := binary.Read(r, binary.LittleEndian, &nonceLen); err != nil {
		return kdfParams{}, err
	}
	p.nonce = make([]byte, nonceLen)
	if _, err := io.ReadFull(r, p.nonce); err != nil {
		return kdfParams{}, err
	}
	return p, nil
}

// bundle builds the tar.gz. Missing items are tolerated (a workspace without
// a .env is fine) but an entirely empty bundle is an error.
func bundle(items []Item) ([]byte, error) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)

	added := 0
	for _, item := range items {
		if item.SrcPath == "" || item.ArchivePath == "" {
			continue
		}
		info, err := os.Stat(item.SrcPath)
		if err != nil {
			continue
		}
		if info.IsDir() {
			added += bundleDir(tw, item.SrcPath, filepath.ToSlash(item.ArchivePath))
			continue
		}
		if err := addFile(tw, item.SrcPath, filepath.ToSlash(item.ArchivePath), info); err != nil {
			return nil, err
		}
		added++
	}
	if err := tw.Close(); err != nil {
		return nil, err
	}
	if err := gz.Close(); err != nil {
		return nil, err
	}
	if added == 0 {
		return nil, errors.New("nothing to snapshot: none of the requested files exist")
	}
	return buf.Bytes(), nil
}

func bundleDir(tw *tar.Writer, root, base string) int {
	added := 0
	_ = filepath.Walk(root, func(path string, fi os.FileInfo, err error) error {
		if err != nil || fi.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return nil
		}
		if addFile(tw, path, filepath.ToSlash(filepath.Join(base, rel)), fi) == nil {
			added++
		}
		return nil
	})
	return added
}

func addFile(tw *tar.Writer, srcPath, arcName string, info os.FileInfo) error {
	f, err := os.Open(srcPath)
	if err != nil {
		return err
	}
	defer f.Close()
	hdr := &tar.Header{
		Name:    arcName,
		Size:    info.Size(),
		Mode:    int64(info.Mode().Perm()),
		ModTime: info.ModTime(),
	}
	if err := tw.WriteHeader(hdr); err != nil {
		return err
	}
	_, err = io.Copy(tw, f)
	return err
}

// Seal bundles items and writes the encrypted snapshot at outPath. Written
// via a temp file so a crash never leaves a half-sealed snapshot behind.
func Seal(password []byte, items []Item, outPath string) error {
	plaintext, err := bundle(items)
	if err != nil {
		return err
	}
	p, err := newKDFParams()
	if err != nil {
		return err
	}
	gcm, err := newGCM(p, password)
	if err != nil {
		return err
	}
	sealed := gcm.Seal(nil, p.nonce, plaintext, nil)

	if err := os.MkdirAll(filepath.Dir(outPath), 0o700); err != nil {
		return err
	}
	tmp := outPath + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	if err := writeHeader(f, p); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if _, err := f.Write(sealed); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, outPath)
}

func newGCM(p kdfParams, password []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(p.key(password))
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

func decrypt(password []byte, inPath string) ([]byte, error) {
	f, err := os.Open(inPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	p, err := readHeader(f)
	if err != nil {
		return nil, err
	}
	gcm, err := newGCM(p, password)
	if err != nil {
		return nil, err
	}
	ciphertext, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}
	plaintext, err := gcm.Open(nil, p.nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrBadPassword
	}
	return plaintext, nil
}

// List returns the archive paths inside a snapshot without extracting it.
func List(password []byte, inPath string) ([]string, error) {
	plaintext, err := decrypt(password, inPath)
	if err != nil {
		return nil, err
	}
	tr, closeFn, err := openTar(plaintext)
	if err != nil {
		return nil, err
	}
	defer closeFn()

	var names []string
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if !hdr.FileInfo().IsDir() {
			names = append(names, hdr.Name)
		}
	}
	return names, nil
}

// Restore extracts a snapshot into destDir. Entries pointing outside the
// destination are rejected.
func Restore(password []byte, inPath, destDir string) error {
	plaintext, err := decrypt(password, inPath)
	if err != nil {
		return err
	}
	tr, closeFn, err := openTar(plaintext)
	if err != nil {
		return err
	}
	defer closeFn()

	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if hdr.FileInfo().IsDir() {
			continue
		}
		outPath := filepath.Join(destDir, filepath.FromSlash(hdr.Name))
		if !strings.HasPrefix(outPath, filepath.Clean(destDir)+string(os.PathSeparator)) {
			return fmt.Errorf("snapshot entry %q escapes the destination", hdr.Name)
		}
		if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
			return err
		}
		out, err := os.OpenFile(outPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, hdr.FileInfo().Mode())
		if err != nil {
			return err
		}
		if _, err := io.Copy(out, tr); err != nil {
			out.Close()
			return err
		}
		if err := out.Close(); err != nil {
			return err
		}
		_ = os.Chtimes(outPath, time.Now(), hdr.ModTime)
	}
}

func openTar(plaintext []byte) (*tar.Reader, func(), error) {
	gz, err := gzip.NewReader(bytes.NewReader(plaintext))
	if err != nil {
		return nil, nil, err
	}
	return tar.NewReader(gz), func() { gz.Close() }, nil
}
