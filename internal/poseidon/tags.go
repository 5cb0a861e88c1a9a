// Package poseidon implements the domain-separated Poseidon sponge used for
// every hash in the ledger core. Each invocation is separated by an ASCII
// tag; the tag fixes the sponge's initial state.
package poseidon

import "fmt"

// Domain tags. Byte-identical strings are part of the protocol surface.
const (
	TagAccount               = "MinaAccount"
	TagZkappAccount          = "MinaZkappAccount"
	TagZkappURI              = "MinaZkappUri"
	TagZkappActionStateEmpty = "MinaZkappActionStateEmptyElt"
	TagSideLoadedVk          = "MinaSideLoadedVk"
	TagDeriveTokenID         = "MinaDeriveTokenId"
	TagAcctUpdateCons        = "MinaAcctUpdateCons"
	TagAcctUpdateNode        = "MinaAcctUpdateNode"
	TagProtoStateBody        = "MinaProtoStateBody"
	TagReceiptUC             = "MinaReceiptUC"
	TagStackFrameCons        = "MinaActUpStckFrmCons"
	TagZkappMemo             = "MinaZkappMemo"
	TagZkappBody             = "MinaZkappBody"
	TagZkappFeePayer         = "MinaZkappFeePayer"
	TagZkappEvents           = "MinaZkappEvents"
	TagZkappActions          = "MinaZkappSeqEvents"
	TagSignature             = "MinaSignatureMainnet"
	TagSignatureLegacy       = "CodaSignature"
)

// PrefixMklTree formats the per-depth Merkle node tag, MinaMklTree000 through
// MinaMklTree999.
func PrefixMklTree(depth int) string {
	return fmt.Sprintf("MinaMklTree%03d", depth)
}
