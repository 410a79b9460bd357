package keymanager

import "fmt"

// Namespace conventions for keys stored in the SecureStore.
const (
	nsIKPrivate     = "ik/private"
	nsIKPublic      = "ik/public"
	nsIKSignPrivate = "ik/sign_private"
	nsIKSignPublic  = "ik/sign_public"

	nsSPKCurrentID  = "spk/current_id"
	nsSPKRotationTS = "spk/rotation_ts"

	nsOPKIndex = "opk/index"
)

func nsSPK(id uint32) string {
	return fmt.Sprintf("spk/%d", id)
}

func nsOPK(id uint32) string {
	return fmt.Sprintf("opk/%d", id)
}
