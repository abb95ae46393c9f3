package cpu

// CSR addresses owned by the core. Everything else is delegated to the
// environment.
const (
	csrFflags uint32 = 0x001
	csrFrm    uint32 = 0x002
	csrFCSR   uint32 = 0x003
)

func isFloatCSR(csr uint32) bool {
	return csr >= csrFflags && csr <= csrFCSR
}

// execCSR implements the six Zicsr instructions. The write side is
// skipped for CSRRS/CSRRC with rs1=x0 (or a zero immediate) and the read
// side for CSRRW/CSRRWI with rd=x0, and the environment is told which
// sides remain so read-only and write-only CSRs can reject violations.
func (c *CPU) execCSR(env Environment, in *Inst) *Exception {
	imm := in.Op == OpCSRRWI || in.Op == OpCSRRSI || in.Op == OpCSRRCI
	var src uint32
	if imm {
		src = in.Rs1
	} else {
		src = c.X(in.Rs1)
	}

	write := true
	if in.Op != OpCSRRW && in.Op != OpCSRRWI {
		write = in.Rs1 != 0
	}
	read := !(in.Op == OpCSRRW || in.Op == OpCSRRWI) || in.Rd != 0

	access := CSRAccessReadWrite
	switch {
	case read && !write:
		access = CSRAccessRead
	case write && !read:
		access = CSRAccessWrite
	}

	if isFloatCSR(in.CSR) {
		return c.execFloatCSR(env, in, src, read, write)
	}

	var old uint32
	if read {
		v, err := env.ReadCSR(in.CSR, access)
		if err != nil {
			return excf(CauseIllegalInstruction, in.Raw)
		}
		old = v
	}
	if write {
		if err := env.WriteCSR(in.CSR, csrApply(in.Op, old, src), access); err != nil {
			return excf(CauseIllegalInstruction, in.Raw)
		}
	}
	if read {
		c.SetX(in.Rd, old)
	}
	return nil
}

func csrApply(op Op, old, src uint32) uint32 {
	switch op {
	case OpCSRRW, OpCSRRWI:
		return src
	case OpCSRRS, OpCSRRSI:
		return old | src
	default: // OpCSRRC, OpCSRRCI
		return old &^ src
	}
}

// execFloatCSR handles the core-owned fflags/frm/fcsr registers. They
// exist only when an FP unit is configured and the F extension is on;
// otherwise the instruction is illegal.
func (c *CPU) execFloatCSR(env Environment, in *Inst, src uint32, read, write bool) *Exception {
	if c.width == FloatNone || !env.ExtensionEnabled(ExtF) {
		return excf(CauseIllegalInstruction, in.Raw)
	}
	var old uint32
	switch in.CSR {
	case csrFflags:
		old = uint32(c.fcsr) & fcsrFlagsMask
	case csrFrm:
		old = uint32(c.fcsr) >> fcsrRMShift & fcsrRMMask
	case csrFCSR:
		old = uint32(c.fcsr)
	}
	if write {
		v := csrApply(in.Op, old, src)
		switch in.CSR {
		case csrFflags:
			c.fcsr = c.fcsr&^uint8(fcsrFlagsMask) | uint8(v&fcsrFlagsMask)
		case csrFrm:
			c.fcsr = c.fcsr&uint8(fcsrFlagsMask) | uint8(v&fcsrRMMask)<<fcsrRMShift
		case csrFCSR:
			c.fcsr = uint8(v & 0xFF)
		}
	}
	if read {
		c.SetX(in.Rd, old)
	}
	return nil
}
