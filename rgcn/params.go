// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package rgcn

import (
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/gomlx/gomlx/ml/context"
	"github.com/gomlx/gomlx/types/shapes"
	"github.com/gomlx/gomlx/types/tensors"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/pkg/errors"
)

// Scopes and names of the model variables in the context.
const (
	Layer1Scope     = "/rgcn1"
	Layer2Scope     = "/rgcn2"
	EmbeddingsScope = "/embeddings"

	WeightsName = "weights"
	RootName    = "root"
	BiasName    = "bias"
)

// DType of all parameters.
var DType = dtypes.Float32

// EmbeddingName returns the variable name of the i-th node embedding.
func EmbeddingName(i int) string { return fmt.Sprintf("embedding_%d", i) }

// Dims are the dimensions of a model.
//
// A model with EmbeddingDim == 0 is featureless: its first layer has one weight row
// per node. Otherwise, it has NumEmbeddings node embedding tables of EmbeddingDim columns.
type Dims struct {
	NumNodes, NumRelations, Hidden, NumClasses int
	EmbeddingDim, NumEmbeddings                int
}

// Featureless returns whether the model learns one first-layer weight row per node.
func (d Dims) Featureless() bool { return d.EmbeddingDim == 0 }

// InputDim is the dimension of the input of the first layer: one-hot nodes for featureless
// models, the embedding otherwise.
func (d Dims) InputDim() int {
	if d.Featureless() {
		return d.NumNodes
	}
	return d.EmbeddingDim
}

// Validate the dimensions.
func (d Dims) Validate() error {
	if d.NumNodes <= 0 || d.NumRelations <= 0 || d.Hidden <= 0 || d.NumClasses <= 0 {
		return errors.Errorf("invalid model dimensions %+v: nodes, relations, hidden and classes must be > 0", d)
	}
	if d.EmbeddingDim < 0 || (d.EmbeddingDim > 0 && d.NumEmbeddings <= 0) {
		return errors.Errorf("invalid model dimensions %+v: embedding models need at least one embedding", d)
	}
	if d.Featureless() && d.NumEmbeddings != 0 {
		return errors.Errorf("invalid model dimensions %+v: featureless models have no embeddings", d)
	}
	return nil
}

// Layer holds the parameters of one relational graph convolution.
type Layer struct {
	// Weight is shaped [NumRelations, inputDim, outputDim].
	Weight *tensors.Tensor

	// Root (self-connection) is shaped [inputDim, outputDim].
	Root *tensors.Tensor

	// Bias is shaped [outputDim].
	Bias *tensors.Tensor
}

// Params is the parameter bundle of a model, kept on the host so it can be transferred
// between models of different graphs.
type Params struct {
	Dims       Dims
	Embeddings []*tensors.Tensor
	Layer1     Layer
	Layer2     Layer
}

// NewParams creates freshly initialized parameters: Kaiming uniform (fan-in) relation weights,
// Glorot uniform root weights, zero biases and standard normal embeddings.
// The same seed yields the same parameters.
func NewParams(dims Dims, seed uint64) (*Params, error) {
	if err := dims.Validate(); err != nil {
		return nil, err
	}
	rng := rand.New(rand.NewPCG(seed, 0x5eed))
	in, h, c, r := dims.InputDim(), dims.Hidden, dims.NumClasses, dims.NumRelations
	p := &Params{
		Dims: dims,
		Layer1: Layer{
			Weight: kaimingUniform(rng, r, in, h),
			Root:   glorotUniform(rng, in, h),
			Bias:   tensors.FromShape(shapes.Make(DType, h)),
		},
		Layer2: Layer{
			Weight: kaimingUniform(rng, r, h, c),
			Root:   glorotUniform(rng, h, c),
			Bias:   tensors.FromShape(shapes.Make(DType, c)),
		},
	}
	for range dims.NumEmbeddings {
		data := make([]float32, dims.NumNodes*dims.EmbeddingDim)
		for ii := range data {
			data[ii] = float32(rng.NormFloat64())
		}
		p.Embeddings = append(p.Embeddings, tensors.FromFlatDataAndDimensions(data, dims.NumNodes, dims.EmbeddingDim))
	}
	return p, nil
}

// kaimingUniform follows the fan-in convention of relation weight tensors: all axes but the first.
func kaimingUniform(rng *rand.Rand, dims ...int) *tensors.Tensor {
	fanIn := 1
	for _, dim := range dims[1:] {
		fanIn *= dim
	}
	return uniform(rng, math.Sqrt(6.0/float64(fanIn)), dims...)
}

func glorotUniform(rng *rand.Rand, fanIn, fanOut int) *tensors.Tensor {
	return uniform(rng, math.Sqrt(6.0/float64(fanIn+fanOut)), fanIn, fanOut)
}

func uniform(rng *rand.Rand, bound float64, dims ...int) *tensors.Tensor {
	size := 1
	for _, dim := range dims {
		size *= dim
	}
	data := make([]float32, size)
	for ii := range data {
		data[ii] = float32((2*rng.Float64() - 1) * bound)
	}
	return tensors.FromFlatDataAndDimensions(data, dims...)
}

// CloneTensor returns a host copy of a float32 tensor that shares no storage with t.
func CloneTensor(t *tensors.Tensor) *tensors.Tensor {
	if t == nil {
		return nil
	}
	return tensors.FromFlatDataAndDimensions(tensors.CopyFlatData[float32](t), t.Shape().Dimensions...)
}

// Clone returns a deep copy of the parameters.
func (p *Params) Clone() *Params {
	c := &Params{
		Dims:   p.Dims,
		Layer1: p.Layer1.clone(),
		Layer2: p.Layer2.clone(),
	}
	for _, emb := range p.Embeddings {
		c.Embeddings = append(c.Embeddings, CloneTensor(emb))
	}
	return c
}

func (l Layer) clone() Layer {
	return Layer{Weight: CloneTensor(l.Weight), Root: CloneTensor(l.Root), Bias: CloneTensor(l.Bias)}
}

// ExpectedShapes returns the shape of each parameter, keyed by its context scope and name.
func (d Dims) ExpectedShapes() map[[2]string]shapes.Shape {
	in, h, c, r := d.InputDim(), d.Hidden, d.NumClasses, d.NumRelations
	expected := map[[2]string]shapes.Shape{
		{Layer1Scope, WeightsName}: shapes.Make(DType, r, in, h),
		{Layer1Scope, RootName}:    shapes.Make(DType, in, h),
		{Layer1Scope, BiasName}:    shapes.Make(DType, h),
		{Layer2Scope, WeightsName}: shapes.Make(DType, r, h, c),
		{Layer2Scope, RootName}:    shapes.Make(DType, h, c),
		{Layer2Scope, BiasName}:    shapes.Make(DType, c),
	}
	for i := range d.NumEmbeddings {
		expected[[2]string{EmbeddingsScope, EmbeddingName(i)}] = shapes.Make(DType, d.NumNodes, d.EmbeddingDim)
	}
	return expected
}

// tensorsByName returns the tensors of p keyed by context scope and name.
func (p *Params) tensorsByName() map[[2]string]*tensors.Tensor {
	named := map[[2]string]*tensors.Tensor{
		{Layer1Scope, WeightsName}: p.Layer1.Weight,
		{Layer1Scope, RootName}:    p.Layer1.Root,
		{Layer1Scope, BiasName}:    p.Layer1.Bias,
		{Layer2Scope, WeightsName}: p.Layer2.Weight,
		{Layer2Scope, RootName}:    p.Layer2.Root,
		{Layer2Scope, BiasName}:    p.Layer2.Bias,
	}
	for i, emb := range p.Embeddings {
		named[[2]string{EmbeddingsScope, EmbeddingName(i)}] = emb
	}
	return named
}

// Validate checks that every tensor has the shape its Dims imply.
func (p *Params) Validate() error {
	if err := p.Dims.Validate(); err != nil {
		return err
	}
	if len(p.Embeddings) != p.Dims.NumEmbeddings {
		return errors.Errorf("parameters have %d embeddings, dimensions say %d", len(p.Embeddings), p.Dims.NumEmbeddings)
	}
	named := p.tensorsByName()
	for key, shape := range p.Dims.ExpectedShapes() {
		t := named[key]
		if t == nil {
			return errors.Errorf("parameter %s/%s is missing", key[0], key[1])
		}
		if !t.Shape().Equal(shape) {
			return errors.Errorf("parameter %s/%s is shaped %s, expected %s", key[0], key[1], t.Shape(), shape)
		}
	}
	return nil
}

// NumParameters returns the total number of scalars in the bundle.
func (p *Params) NumParameters() int {
	total := 0
	for _, t := range p.tensorsByName() {
		total += t.Shape().Size()
	}
	return total
}

// Install sets the parameters as variables of ctx, creating them if needed.
//
// Relation weights, roots and biases of both layers are frozen (not trainable) if freezeWeights,
// and the node embeddings if freezeEmbeddings.
// The tensors are copied: later changes to p don't affect ctx.
func (p *Params) Install(ctx *context.Context, freezeWeights, freezeEmbeddings bool) error {
	if err := p.Validate(); err != nil {
		return err
	}
	for key, t := range p.tensorsByName() {
		scope, name := key[0], key[1]
		value := CloneTensor(t)
		v := ctx.GetVariableByScopeAndName(scope, name)
		if v == nil {
			v = ctx.InAbsPath(scope).VariableWithValue(name, value)
		} else {
			v.SetValue(value)
		}
		if scope == EmbeddingsScope {
			v.SetTrainable(!freezeEmbeddings)
		} else {
			v.SetTrainable(!freezeWeights)
		}
	}
	return nil
}

// FromContext extracts a copy of the parameters with the given dimensions from ctx.
func FromContext(ctx *context.Context, dims Dims) (*Params, error) {
	p := &Params{Dims: dims}
	if dims.NumEmbeddings > 0 {
		p.Embeddings = make([]*tensors.Tensor, dims.NumEmbeddings)
	}
	targets := map[[2]string]**tensors.Tensor{
		{Layer1Scope, WeightsName}: &p.Layer1.Weight,
		{Layer1Scope, RootName}:    &p.Layer1.Root,
		{Layer1Scope, BiasName}:    &p.Layer1.Bias,
		{Layer2Scope, WeightsName}: &p.Layer2.Weight,
		{Layer2Scope, RootName}:    &p.Layer2.Root,
		{Layer2Scope, BiasName}:    &p.Layer2.Bias,
	}
	for i := range p.Embeddings {
		targets[[2]string{EmbeddingsScope, EmbeddingName(i)}] = &p.Embeddings[i]
	}
	for key, target := range targets {
		v := ctx.GetVariableByScopeAndName(key[0], key[1])
		if v == nil {
			return nil, errors.Errorf("variable %s/%s not found in context", key[0], key[1])
		}
		*target = CloneTensor(v.Value())
	}
	if err := p.Validate(); err != nil {
		return nil, errors.WithMessage(err, "parameters in context don't match the dimensions")
	}
	return p, nil
}
