package domain

// CanStack decides whether a code promotion may be applied on top of the
// cart's automatic promotion. With no automatic promotion attached the code
// may always be applied. Otherwise both sides must opt in: the automatic
// promotion must allow a code on top (StackWithCode) and the code promotion
// must allow an automatic promotion underneath (StackWithAuto). On rejection
// the automatic promotion is left untouched; there is no silent override.
func CanStack(auto, code *Promotion) bool {
	if auto == nil {
		return true
	}
	return auto.StackWithCode && code.StackWithAuto
}
