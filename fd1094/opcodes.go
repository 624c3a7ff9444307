package fd1094

import "sync"

// Blank is the value returned in place of a masked opcode
const Blank uint16 = 0xffff

// maskedOpcodes are the opcodes that read memory through (d16,PC): BTST,
// MOVE, CHK, MOVE to CCR and SR, MOVEM and the OR, SUB, CMP, AND and ADD
// families. LEA, PEA, JSR and JMP only compute the address and are left
// alone. The blank table ignores bit 0 so the (d8,PC,Xn) forms ending in
// 0x3b are masked as well
var maskedOpcodes = [...]uint16{
	0x013a, 0x033a, 0x053a, 0x073a, 0x083a, 0x093a, 0x0b3a, 0x0d3a,
	0x0f3a, 0x103a, 0x10ba, 0x10fa, 0x113a, 0x117a, 0x11ba, 0x11fa,
	0x123a, 0x12ba, 0x12fa, 0x133a, 0x137a, 0x13ba, 0x13fa, 0x143a,
	0x14ba, 0x14fa, 0x153a, 0x157a, 0x15ba, 0x163a, 0x16ba, 0x16fa,
	0x173a, 0x177a, 0x17ba, 0x183a, 0x18ba, 0x18fa, 0x193a, 0x197a,
	0x19ba, 0x1a3a, 0x1aba, 0x1afa, 0x1b3a, 0x1b7a, 0x1bba, 0x1c3a,
	0x1cba, 0x1cfa, 0x1d3a, 0x1d7a, 0x1dba, 0x1e3a, 0x1eba, 0x1efa,
	0x1f3a, 0x1f7a, 0x1fba, 0x203a, 0x207a, 0x20ba, 0x20fa, 0x213a,
	0x217a, 0x21ba, 0x21fa, 0x223a, 0x227a, 0x22ba, 0x22fa, 0x233a,
	0x237a, 0x23ba, 0x23fa, 0x243a, 0x247a, 0x24ba, 0x24fa, 0x253a,
	0x257a, 0x25ba, 0x263a, 0x267a, 0x26ba, 0x26fa, 0x273a, 0x277a,
	0x27ba, 0x283a, 0x287a, 0x28ba, 0x28fa, 0x293a, 0x297a, 0x29ba,
	0x2a3a, 0x2a7a, 0x2aba, 0x2afa, 0x2b3a, 0x2b7a, 0x2bba, 0x2c3a,
	0x2c7a, 0x2cba, 0x2cfa, 0x2d3a, 0x2d7a, 0x2dba, 0x2e3a, 0x2e7a,
	0x2eba, 0x2efa, 0x2f3a, 0x2f7a, 0x2fba, 0x303a, 0x307a, 0x30ba,
	0x30fa, 0x313a, 0x317a, 0x31ba, 0x31fa, 0x323a, 0x327a, 0x32ba,
	0x32fa, 0x333a, 0x337a, 0x33ba, 0x33fa, 0x343a, 0x347a, 0x34ba,
	0x34fa, 0x353a, 0x357a, 0x35ba, 0x363a, 0x367a, 0x36ba, 0x36fa,
	0x373a, 0x377a, 0x37ba, 0x383a, 0x387a, 0x38ba, 0x38fa, 0x393a,
	0x397a, 0x39ba, 0x3a3a, 0x3a7a, 0x3aba, 0x3afa, 0x3b3a, 0x3b7a,
	0x3bba, 0x3c3a, 0x3c7a, 0x3cba, 0x3cfa, 0x3d3a, 0x3d7a, 0x3dba,
	0x3e3a, 0x3e7a, 0x3eba, 0x3efa, 0x3f3a, 0x3f7a, 0x3fba, 0x41ba,
	0x43ba, 0x44fa, 0x45ba, 0x46fa, 0x47ba, 0x49ba, 0x4bba, 0x4cba,
	0x4cfa, 0x4dba, 0x4fba, 0x803a, 0x807a, 0x80ba, 0x80fa, 0x81fa,
	0x823a, 0x827a, 0x82ba, 0x82fa, 0x83fa, 0x843a, 0x847a, 0x84ba,
	0x84fa, 0x85fa, 0x863a, 0x867a, 0x86ba, 0x86fa, 0x87fa, 0x883a,
	0x887a, 0x88ba, 0x88fa, 0x89fa, 0x8a3a, 0x8a7a, 0x8aba, 0x8afa,
	0x8bfa, 0x8c3a, 0x8c7a, 0x8cba, 0x8cfa, 0x8dfa, 0x8e3a, 0x8e7a,
	0x8eba, 0x8efa, 0x8ffa, 0x903a, 0x907a, 0x90ba, 0x90fa, 0x91fa,
	0x923a, 0x927a, 0x92ba, 0x92fa, 0x93fa, 0x943a, 0x947a, 0x94ba,
	0x94fa, 0x95fa, 0x963a, 0x967a, 0x96ba, 0x96fa, 0x97fa, 0x983a,
	0x987a, 0x98ba, 0x98fa, 0x99fa, 0x9a3a, 0x9a7a, 0x9aba, 0x9afa,
	0x9bfa, 0x9c3a, 0x9c7a, 0x9cba, 0x9cfa, 0x9dfa, 0x9e3a, 0x9e7a,
	0x9eba, 0x9efa, 0x9ffa, 0xb03a, 0xb07a, 0xb0ba, 0xb0fa, 0xb1fa,
	0xb23a, 0xb27a, 0xb2ba, 0xb2fa, 0xb3fa, 0xb43a, 0xb47a, 0xb4ba,
	0xb4fa, 0xb5fa, 0xb63a, 0xb67a, 0xb6ba, 0xb6fa, 0xb7fa, 0xb83a,
	0xb87a, 0xb8ba, 0xb8fa, 0xb9fa, 0xba3a, 0xba7a, 0xbaba, 0xbafa,
	0xbbfa, 0xbc3a, 0xbc7a, 0xbcba, 0xbcfa, 0xbdfa, 0xbe3a, 0xbe7a,
	0xbeba, 0xbefa, 0xbffa, 0xc03a, 0xc07a, 0xc0ba, 0xc0fa, 0xc1fa,
	0xc23a, 0xc27a, 0xc2ba, 0xc2fa, 0xc3fa, 0xc43a, 0xc47a, 0xc4ba,
	0xc4fa, 0xc5fa, 0xc63a, 0xc67a, 0xc6ba, 0xc6fa, 0xc7fa, 0xc83a,
	0xc87a, 0xc8ba, 0xc8fa, 0xc9fa, 0xca3a, 0xca7a, 0xcaba, 0xcafa,
	0xcbfa, 0xcc3a, 0xcc7a, 0xccba, 0xccfa, 0xcdfa, 0xce3a, 0xce7a,
	0xceba, 0xcefa, 0xcffa, 0xd03a, 0xd07a, 0xd0ba, 0xd0fa, 0xd1fa,
	0xd23a, 0xd27a, 0xd2ba, 0xd2fa, 0xd3fa, 0xd43a, 0xd47a, 0xd4ba,
	0xd4fa, 0xd5fa, 0xd63a, 0xd67a, 0xd6ba, 0xd6fa, 0xd7fa, 0xd83a,
	0xd87a, 0xd8ba, 0xd8fa, 0xd9fa, 0xda3a, 0xda7a, 0xdaba, 0xdafa,
	0xdbfa, 0xdc3a, 0xdc7a, 0xdcba, 0xdcfa, 0xddfa, 0xde3a, 0xde7a,
	0xdeba, 0xdefa, 0xdffa,
}

var (
	blankOnce  sync.Once
	blankTable [2][0x10000 / 8 / 2]uint8
)

func buildBlankTable() {
	for _, op := range maskedOpcodes {
		blankTable[0][op>>4] |= 1 << ((op >> 1) & 7)
		blankTable[1][op>>4] |= 1 << ((op >> 1) & 7)
	}

	// JSR, DBcc and Bcc are only masked by the stricter variant
	for i := 0; i < 0x10000; i += 2 {
		op := uint16(i)
		if op&0xff80 == 0x4e80 || op&0xf0f8 == 0x50c8 || op&0xf000 == 0x6000 {
			blankTable[1][op>>4] |= 1 << ((op >> 1) & 7)
		}
	}
}

// IsBlanked returns true if a decoded op is replaced with Blank. moreFFFF
// selects the stricter variant
func IsBlanked(op uint16, moreFFFF bool) bool {
	blankOnce.Do(buildBlankTable)

	v := 0
	if moreFFFF {
		v = 1
	}

	return blankTable[v][op>>4]&(1<<((op>>1)&7)) != 0
}
