package tensor

// Value is the tensor-like family that participates in operator dispatch.
//
// *RawTensor is the dense leaf implementation. Composite (wrapper subclass)
// values implement Value as well and additionally satisfy the wrapper
// protocol in the dispatch package, which lets them be decomposed into
// dense leaves and reconstructed.
type Value interface {
	Shape() Shape
	DType() DataType
	Device() Device
}
