//go:build darwin || linux

// Package ffmpeg provides purego (dlopen) bindings to the system FFmpeg
// libraries: libavformat, libavcodec, libavutil, libswscale, libswresample.
//
// The bindings are deliberately narrow: they expose only what the playback
// engine needs (container open/probe, packet read, seek, decode, hardware
// decode contexts, pixel/sample conversion). Opaque C structs are handled as
// unsafe.Pointer values; the few struct fields that must be read directly use
// documented offsets verified against FFmpeg 6.x.
//
// Set JELLYTV_FFMPEG_PATH to the directory containing the shared libraries to
// override the default search paths.
package ffmpeg

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"github.com/ebitengine/purego"
)

// ErrNotLoaded is returned when the FFmpeg libraries could not be loaded.
var ErrNotLoaded = errors.New("ffmpeg: libraries not loaded")

var (
	loadOnce sync.Once
	loadErr  error

	libAVUtil   uintptr
	libAVCodec  uintptr
	libAVFormat uintptr
	libSWScale  uintptr
	libSWResamp uintptr
)

// libSearch describes one FFmpeg component library and its candidate sonames.
// Only the FFmpeg 6.x majors are listed: the direct struct-field offsets in
// this package are verified against the 6.x layouts, and 7.x moved several of
// those fields. Unversioned sonames are skipped for the same reason.
type libSearch struct {
	names []string
	dst   *uintptr
}

func searchList() []libSearch {
	if runtime.GOOS == "darwin" {
		return []libSearch{
			{[]string{"libavutil.58.dylib"}, &libAVUtil},
			{[]string{"libavcodec.60.dylib"}, &libAVCodec},
			{[]string{"libavformat.60.dylib"}, &libAVFormat},
			{[]string{"libswscale.7.dylib"}, &libSWScale},
			{[]string{"libswresample.4.dylib"}, &libSWResamp},
		}
	}
	return []libSearch{
		{[]string{"libavutil.so.58"}, &libAVUtil},
		{[]string{"libavcodec.so.60"}, &libAVCodec},
		{[]string{"libavformat.so.60"}, &libAVFormat},
		{[]string{"libswscale.so.7"}, &libSWScale},
		{[]string{"libswresample.so.4"}, &libSWResamp},
	}
}

func searchDirs() []string {
	var dirs []string
	if p := os.Getenv("JELLYTV_FFMPEG_PATH"); p != "" {
		dirs = append(dirs, p)
	}
	// Empty string means "let the dynamic linker search its default paths".
	dirs = append(dirs, "")
	if runtime.GOOS == "darwin" {
		dirs = append(dirs, "/usr/local/lib", "/opt/homebrew/lib")
	} else {
		dirs = append(dirs, "/usr/local/lib", "/usr/lib", "/usr/lib/x86_64-linux-gnu", "/usr/lib/aarch64-linux-gnu")
	}
	return dirs
}

func dlopenFirst(names []string) (uintptr, error) {
	var lastErr error
	for _, dir := range searchDirs() {
		for _, name := range names {
			path := name
			if dir != "" {
				path = filepath.Join(dir, name)
			}
			handle, err := purego.Dlopen(path, purego.RTLD_NOW|purego.RTLD_GLOBAL)
			if err == nil && handle != 0 {
				return handle, nil
			}
			lastErr = err
		}
	}
	if lastErr == nil {
		lastErr = errors.New("no candidate found")
	}
	return 0, lastErr
}

// Load resolves the FFmpeg shared libraries and registers all bindings.
// It is safe to call from multiple goroutines; the work happens once.
func Load() error {
	loadOnce.Do(func() {
		for _, ls := range searchList() {
			handle, err := dlopenFirst(ls.names)
			if err != nil {
				loadErr = fmt.Errorf("ffmpeg: %s: %w", ls.names[0], err)
				return
			}
			*ls.dst = handle
		}
		registerAVUtil(libAVUtil)
		registerAVCodec(libAVCodec)
		registerAVFormat(libAVFormat)
		registerSWScale(libSWScale)
		registerSWResample(libSWResamp)
	})
	return loadErr
}

// Available reports whether the FFmpeg libraries are usable.
func Available() bool {
	return Load() == nil
}

// registerOptional registers a symbol that may be absent in older builds.
// Missing optional symbols leave the function pointer nil.
func registerOptional(fptr any, handle uintptr, name string) {
	defer func() { _ = recover() }()
	purego.RegisterLibFunc(fptr, handle, name)
}
