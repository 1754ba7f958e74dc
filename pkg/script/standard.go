package script

// P2PKH returns the pay-to-pubkey-hash locking script:
//
//	OP_DUP OP_HASH160 <h160> OP_EQUALVERIFY OP_CHECKSIG
func P2PKH(h160 []byte) *Script {
	return New(Op(OP_DUP), Op(OP_HASH160), Data(h160), Op(OP_EQUALVERIFY), Op(OP_CHECKSIG))
}

// P2PK returns the pay-to-pubkey locking script: <sec> OP_CHECKSIG.
func P2PK(sec []byte) *Script {
	return New(Data(sec), Op(OP_CHECKSIG))
}

// P2PKHUnlock returns the unlocking script for a P2PKH output: the DER
// signature with its sighash byte appended, then the SEC public key.
func P2PKHUnlock(sigWithHashType, sec []byte) *Script {
	return New(Data(sigWithHashType), Data(sec))
}

// IsP2PKH reports whether s has the P2PKH shape.
func (s *Script) IsP2PKH() bool {
	c := s.cmds
	return len(c) == 5 &&
		c[0].Equal(Op(OP_DUP)) &&
		c[1].Equal(Op(OP_HASH160)) &&
		c[2].IsData() && len(c[2].Data) == 20 &&
		c[3].Equal(Op(OP_EQUALVERIFY)) &&
		c[4].Equal(Op(OP_CHECKSIG))
}

// PubKeyHash returns the 20-byte hash of a P2PKH script, or nil.
func (s *Script) PubKeyHash() []byte {
	if !s.IsP2PKH() {
		return nil
	}
	return append([]byte{}, s.cmds[2].Data...)
}
