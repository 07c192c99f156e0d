package platform

import (
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/sst/opencode-install/pkg/logger"
)

// Canonical OS family tokens.
const (
	OSLinux   = "linux"
	OSDarwin  = "darwin"
	OSWindows = "windows"
	OSAndroid = "android"
)

// Canonical architecture tokens.
const (
	ArchX64   = "x64"
	ArchArm64 = "arm64"
	ArchArm   = "arm"
	ArchX86   = "x86"
)

// Libc flavors.
const (
	LibcGlibc = "glibc"
	LibcMusl  = "musl"
)

var (
	// ErrUnsupportedPlatform is returned for OS families this tool has no builds for.
	ErrUnsupportedPlatform = errors.New("unsupported platform")

	// ErrUnsupportedArch is returned for CPU architectures outside the mapping table.
	ErrUnsupportedArch = errors.New("unsupported architecture")

	// ErrUnsupportedCombination is returned when the OS and architecture map
	// individually but no build exists for the pair.
	ErrUnsupportedCombination = errors.New("unsupported os/arch combination")
)

// archTable maps raw machine strings to canonical architecture tokens.
var archTable = map[string]string{
	"x86_64":  ArchX64,
	"amd64":   ArchX64,
	"aarch64": ArchArm64,
	"arm64":   ArchArm64,
	"armv7l":  ArchArm,
	"armv8l":  ArchArm,
	"i386":    ArchX86,
	"i486":    ArchX86,
	"i586":    ArchX86,
	"i686":    ArchX86,
}

// supportedTargets is the allow-list of combinations with published builds.
var supportedTargets = map[string]map[string]bool{
	OSLinux:   {ArchX64: true, ArchArm64: true},
	OSDarwin:  {ArchX64: true, ArchArm64: true},
	OSWindows: {ArchX64: true},
}

// Profile is the resolved build target. Everything downstream of the resolver
// consumes this single value instead of re-reading system state.
type Profile struct {
	OS       string
	Arch     string
	Libc     string
	Baseline bool
}

// IsAndroid reports whether the profile targets a Termux/Android environment.
func (p Profile) IsAndroid() bool {
	return p.OS == OSAndroid
}

// Target returns the canonical "<os>-<arch>" pair.
func (p Profile) Target() string {
	return p.OS + "-" + p.Arch
}

// Resolver turns gathered Facts into a Profile.
type Resolver struct {
	log logger.Logger
}

// NewResolver creates a Resolver.
func NewResolver(log logger.Logger) *Resolver {
	if log == nil {
		log = logger.NewNoOpLogger()
	}

	return &Resolver{log: log}
}

// Resolve maps raw system facts to exactly one build target. The steps are
// ordered; later steps may override earlier decisions (Termux over uname,
// Rosetta over the reported architecture).
func (r *Resolver) Resolve(facts Facts) (Profile, error) {
	osFamily, err := r.resolveOS(facts)
	if err != nil {
		return Profile{}, err
	}

	arch, ok := archTable[strings.ToLower(facts.Machine)]
	if !ok {
		return Profile{}, errors.Wrapf(ErrUnsupportedArch, "machine %q", facts.Machine)
	}

	// Rosetta correction: an x64 report on darwin can mean an emulated
	// process on Apple silicon. Prefer the native arm64 build.
	if osFamily == OSDarwin && arch == ArchX64 && facts.RosettaSysctl == "1" {
		r.log.Debug("rosetta translation detected, overriding architecture", "arch", ArchArm64)

		arch = ArchArm64
	}

	if err := r.checkSupported(osFamily, arch); err != nil {
		return Profile{}, err
	}

	profile := Profile{
		OS:   osFamily,
		Arch: arch,
		Libc: r.resolveLibc(osFamily, facts),
	}
	profile.Baseline = r.resolveBaseline(profile, facts)

	r.log.Info("resolved platform",
		"os", profile.OS,
		"arch", profile.Arch,
		"libc", profile.Libc,
		"baseline", profile.Baseline,
	)

	return profile, nil
}

// resolveOS maps the kernel-reported name to a canonical OS family. The
// Termux check runs first: Termux reports Linux but needs Android handling.
func (r *Resolver) resolveOS(facts Facts) (string, error) {
	if facts.TermuxRoot {
		return OSAndroid, nil
	}

	switch strings.ToLower(facts.OSName) {
	case "linux":
		return OSLinux, nil
	case "darwin":
		return OSDarwin, nil
	case "windows", "windows_nt":
		return OSWindows, nil
	default:
		return "", errors.Wrapf(ErrUnsupportedPlatform, "os %q", facts.OSName)
	}
}

// checkSupported validates the pair against the allow-list. Android is not
// listed: its arm builds fall back to the Linux artifacts, anything else on
// Android is fatal.
func (r *Resolver) checkSupported(osFamily, arch string) error {
	if supportedTargets[osFamily][arch] {
		return nil
	}

	if osFamily == OSAndroid && (arch == ArchArm || arch == ArchArm64) {
		r.log.Info("untested android target, will use linux binary", "arch", arch)

		return nil
	}

	return errors.Wrapf(ErrUnsupportedCombination, "target %s-%s", osFamily, arch)
}

// resolveLibc determines the libc flavor. Only meaningful on linux; Android's
// bionic is treated as glibc-equivalent regardless of other signals.
func (*Resolver) resolveLibc(osFamily string, facts Facts) string {
	if osFamily != OSLinux {
		return LibcGlibc
	}

	if facts.MuslMarker || strings.Contains(facts.LinkerReport, "musl") {
		return LibcMusl
	}

	return LibcGlibc
}

// resolveBaseline determines whether the CPU lacks AVX2 and needs the
// baseline x64 build. Android never gets baseline builds.
func (*Resolver) resolveBaseline(profile Profile, facts Facts) bool {
	if profile.Arch != ArchX64 || profile.OS == OSAndroid {
		return false
	}

	switch profile.OS {
	case OSLinux:
		return !cpuFlagsContain(facts.CPUFlags, "avx2")
	case OSDarwin:
		return facts.AVX2Sysctl != "1"
	default:
		return false
	}
}

// cpuFlagsContain reports whether a /proc/cpuinfo flags line carries the flag.
func cpuFlagsContain(cpuinfo, flag string) bool {
	for line := range strings.SplitSeq(cpuinfo, "\n") {
		if !strings.HasPrefix(strings.TrimSpace(line), "flags") {
			continue
		}

		for field := range strings.FieldsSeq(line) {
			if field == flag {
				return true
			}
		}
	}

	return false
}
