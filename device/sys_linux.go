//go:build linux

package device

import (
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
)

func closeFD(fd int) error {
	return unix.Close(fd)
}

// isETIME reports whether err is the ETIME the kernel returns from a bounded
// io_uring_enter wait that elapsed with nothing ready — an expected outcome,
// not a device failure.
func isETIME(err error) bool {
	return err == unix.ETIME
}

// kernelSupportsCancelByFD reports whether the running kernel is new enough
// to honor IORING_ASYNC_CANCEL_FD (added in 5.19). Unlike opcode support,
// this isn't something IORING_REGISTER_PROBE reports, so it's checked via
// uname(2) directly.
func kernelSupportsCancelByFD() bool {
	var uts unix.Utsname
	if err := unix.Uname(&uts); err != nil {
		return false
	}
	major, minor, ok := parseKernelRelease(uts.Release)
	if !ok {
		return false
	}
	return major > 5 || (major == 5 && minor >= 19)
}

func parseKernelRelease(release [65]byte) (major, minor int, ok bool) {
	s := string(release[:])
	if i := strings.IndexByte(s, 0); i >= 0 {
		s = s[:i]
	}
	parts := strings.SplitN(s, ".", 3)
	if len(parts) < 2 {
		return 0, 0, false
	}
	major, err1 := strconv.Atoi(leadingDigits(parts[0]))
	minor, err2 := strconv.Atoi(leadingDigits(parts[1]))
	if err1 != nil || err2 != nil {
		return 0, 0, false
	}
	return major, minor, true
}

func leadingDigits(s string) string {
	i := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	return s[:i]
}
