package uring

// Op is an IORING_OP_* opcode.
type Op uint8

const (
	OpNop Op = iota
	OpReadv
	OpWritev
	OpFsync
	OpReadFixed
	OpWriteFixed
	OpPollAdd
	OpPollRemove
	OpSyncFileRange
	OpSendmsg
	OpRecvmsg
	OpTimeout
	OpTimeoutRemove
	OpAccept
	OpAsyncCancel
	OpLinkTimeout
	OpConnect
	OpFallocate
	OpOpenat
	OpClose
	OpFilesUpdate
	OpStatx
	OpRead
	OpWrite
	OpFadvise
	OpMadvise
	OpSend
	OpRecv
	OpOpenat2
	OpEpollCtl
	OpSplice
	OpProvideBuffers
	OpRemoveBuffers
	OpTee
	OpShutdown
	OpRenameat
	OpUnlinkat
	OpMkdirat
	OpSymlinkat
	OpLinkat
	OpMsgRing
	OpFsetxattr
	OpSetxattr
	OpFgetxattr
	OpGetxattr
	OpSocket
	OpUringCmd
	OpSendZC
	OpSendmsgZC
	opLast
)

// Setup flags (IORING_SETUP_*).
const (
	SetupIOPoll       uint32 = 1 << 0
	SetupSQPoll       uint32 = 1 << 1
	SetupSQAff        uint32 = 1 << 2
	SetupCQSize       uint32 = 1 << 3
	SetupClamp        uint32 = 1 << 4
	SetupAttachWQ     uint32 = 1 << 5
	SetupRDisabled    uint32 = 1 << 6
	SetupSubmitAll    uint32 = 1 << 7
	SetupCoopTaskrun  uint32 = 1 << 8
	SetupTaskrunFlag  uint32 = 1 << 9
	SetupSingleIssuer uint32 = 1 << 12
	SetupDeferTaskrun uint32 = 1 << 13
)

// Feature flags (IORING_FEAT_*) reported back by the kernel in Params.
const (
	FeatSingleMmap     uint32 = 1 << 0
	FeatNodrop         uint32 = 1 << 1
	FeatSubmitStable   uint32 = 1 << 2
	FeatRWCurPos       uint32 = 1 << 3
	FeatCurPersonality uint32 = 1 << 4
	FeatFastPoll       uint32 = 1 << 5
	FeatPoll32Bits     uint32 = 1 << 6
	FeatSQPollNonfixed uint32 = 1 << 7
	FeatExtArg         uint32 = 1 << 8
	FeatNativeWorkers  uint32 = 1 << 9
	FeatRsrcTags       uint32 = 1 << 10
	FeatCQESkip        uint32 = 1 << 11
)

// Enter flags (IORING_ENTER_*).
const (
	EnterGetevents       uint32 = 1 << 0
	EnterSQWakeup        uint32 = 1 << 1
	EnterSQWait          uint32 = 1 << 2
	EnterExtArg          uint32 = 1 << 3
	EnterRegisteredRing  uint32 = 1 << 4
)

// SQE flags (IOSQE_*).
const (
	SqeFixedFile   uint8 = 1 << 0
	SqeIODrain     uint8 = 1 << 1
	SqeIOLink      uint8 = 1 << 2
	SqeIOHardlink  uint8 = 1 << 3
	SqeAsync       uint8 = 1 << 4
	SqeBufferSel   uint8 = 1 << 5
	SqeCQESkip     uint8 = 1 << 6
)

// CQE flags (IORING_CQE_F_*).
const (
	CqeFBuffer       uint32 = 1 << 0
	CqeFMore         uint32 = 1 << 1
	CqeFSockNonempty uint32 = 1 << 2
	CqeFNotif        uint32 = 1 << 3

	// CqeFNotifCopied is not a real kernel CQE flag. MSG_ZEROCOPY reports a
	// copy-fallback ("avoided") notification through the socket's error
	// queue as an SO_EE_CODE_ZEROCOPY_COPIED extended error, which requires
	// parsing MSG_ERRQUEUE control messages this module's Wait loop never
	// materializes (device/ring_device_linux.go only drains the completion
	// ring). Nothing in this module sets this bit: RingDevice copies CQE
	// flags unchanged, so IsAvoided is true only for completions built with
	// it explicitly (such as by test fakes).
	CqeFNotifCopied uint32 = 1 << 4
)

// AsyncCancel flags (IORING_ASYNC_CANCEL_*), used with OpAsyncCancel to
// cancel every pending operation on a file descriptor instead of a single
// targeted operation.
const (
	CancelFlagAll uint32 = 1 << 0
	CancelFlagFD  uint32 = 1 << 1
	CancelFlagAny uint32 = 1 << 2
)

// SQ ring flags (IORING_SQ_*).
const (
	SqNeedWakeup  uint32 = 1 << 0
	SqCQOverflow  uint32 = 1 << 1
	SqTaskrun     uint32 = 1 << 2
)
