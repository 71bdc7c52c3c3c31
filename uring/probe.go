package uring

// RingConfig captures the caller's desired ring geometry and feature
// requests before io_uring_setup runs (C1).
type RingConfig struct {
	// SQEntries is the requested submission queue depth. Rounded up to the
	// next power of two by the kernel.
	SQEntries uint32
	// CQEntries, if non-zero, requests an explicit completion queue depth
	// (SetupCQSize); otherwise the kernel defaults to 2x SQEntries.
	CQEntries uint32
	// SQPoll enables kernel-side polling of the submission queue, removing
	// the need to call Enter for every submission.
	SQPoll bool
	// SQPollIdleMillis is how long the SQPOLL kernel thread idles before
	// sleeping, when SQPoll is set.
	SQPollIdleMillis uint32
	// SingleIssuer promises the kernel that only one OS thread ever submits,
	// unlocking a faster internal locking strategy.
	SingleIssuer bool
}

func (c RingConfig) setupFlags() uint32 {
	var flags uint32
	if c.SQPoll {
		flags |= SetupSQPoll
	}
	if c.CQEntries != 0 {
		flags |= SetupCQSize
	}
	if c.SingleIssuer {
		flags |= SetupSingleIssuer
	}
	return flags
}

// RingProbe reports what the negotiated ring actually supports, filled in
// from Params.Features after setup and, optionally, IORING_REGISTER_PROBE.
type RingProbe struct {
	Features     uint32
	SupportedOps map[Op]bool
}

// NewRingProbeForFeatures builds a RingProbe from the Features word
// returned by io_uring_setup, without an opcode table. FillOpSupport can
// populate SupportedOps later via IORING_REGISTER_PROBE.
func NewRingProbeForFeatures(features uint32) *RingProbe {
	return &RingProbe{Features: features, SupportedOps: make(map[Op]bool)}
}

// HasFeature reports whether the given IORING_FEAT_* bit was negotiated.
func (p *RingProbe) HasFeature(bit uint32) bool { return p.Features&bit != 0 }

// Supports reports whether the kernel implements op, based on an
// IORING_REGISTER_PROBE query. If the probe was never queried, Supports
// conservatively returns true for the opcode set this module issues.
func (p *RingProbe) Supports(op Op) bool {
	if len(p.SupportedOps) == 0 {
		return true
	}
	return p.SupportedOps[op]
}

// FillOpSupport queries the kernel via IORING_REGISTER_PROBE and records
// which opcodes it implements.
func (p *RingProbe) FillOpSupport(ringFD int) error {
	return fillProbe(ringFD, p)
}

func fillProbe(ringFD int, p *RingProbe) error {
	raw := &Probe{}
	if err := RegisterProbe(ringFD, raw); err != nil {
		return err
	}
	n := int(raw.OpsLen)
	if n > len(raw.Ops) {
		n = len(raw.Ops)
	}
	for i := 0; i < n; i++ {
		op := raw.Ops[i]
		if op.Flags&OpSupported != 0 {
			p.SupportedOps[Op(op.Op)] = true
		}
	}
	return nil
}
