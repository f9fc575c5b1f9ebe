// Package detectors - detection network backends. The ONNX backend runs
// YOLO-style models through ONNX Runtime.
package detectors

import (
	"context"
	"image"
	"sync"

	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"

	"github.com/visionkit/tiledetect/detection"
	"github.com/visionkit/tiledetect/images"
	"github.com/visionkit/tiledetect/inference"
	"github.com/visionkit/tiledetect/postprocess"
)

// ONNXConfig describes an ONNX detection model.
type ONNXConfig struct {
	// ModelPath is the .onnx file to load.
	ModelPath string
	// Names are the class labels in id order. The class count of the model
	// output is derived from it.
	Names []string
	// InputWidth and InputHeight are the network input resolution.
	// Zero means 640.
	InputWidth  int
	InputHeight int
	// InputName and OutputName are the model's tensor names. Empty means
	// the YOLO export defaults "images" and "output0".
	InputName  string
	OutputName string
	// LibraryPath overrides the ONNX Runtime shared library location.
	LibraryPath string
	// IntraOpThreads and InterOpThreads bound the runtime's own
	// parallelism. Zero keeps the runtime default.
	IntraOpThreads int
	InterOpThreads int
}

// ONNX runs a YOLO-style detection model through ONNX Runtime. It implements
// inference.Invoker. The underlying session works on fixed pre-allocated
// tensors, so calls are serialized internally.
type ONNX struct {
	mu      sync.Mutex
	session *ort.AdvancedSession
	input   *ort.Tensor[float32]
	output  *ort.Tensor[float32]
	names   []string
	inputW  int
	inputH  int
	classes int
	cells   int
	closed  bool
}

var _ inference.Invoker = (*ONNX)(nil)

// NewONNX loads an ONNX detection model and prepares a session for it.
func NewONNX(cfg ONNXConfig) (*ONNX, error) {
	if cfg.ModelPath == "" {
		return nil, errors.New("no model path given")
	}
	if err := initRuntime(cfg.LibraryPath); err != nil {
		return nil, err
	}

	inputW := cfg.InputWidth
	inputH := cfg.InputHeight
	if inputW <= 0 {
		inputW = 640
	}
	if inputH <= 0 {
		inputH = 640
	}
	classes := len(cfg.Names)
	if classes == 0 {
		classes = 80
	}

	// YOLO heads predict on strides 8, 16 and 32; the output column count
	// is the sum of the three grids.
	cells := (inputW/8)*(inputH/8) + (inputW/16)*(inputH/16) + (inputW/32)*(inputH/32)

	inputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(1, 3, int64(inputH), int64(inputW)))
	if err != nil {
		return nil, errors.Wrap(err, "failed to create input tensor")
	}
	outputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(1, int64(4+classes), int64(cells)))
	if err != nil {
		inputTensor.Destroy()
		return nil, errors.Wrap(err, "failed to create output tensor")
	}

	options, err := ort.NewSessionOptions()
	if err != nil {
		inputTensor.Destroy()
		outputTensor.Destroy()
		return nil, errors.Wrap(err, "failed to create session options")
	}
	defer options.Destroy()
	if cfg.IntraOpThreads > 0 {
		options.SetIntraOpNumThreads(cfg.IntraOpThreads)
	}
	if cfg.InterOpThreads > 0 {
		options.SetInterOpNumThreads(cfg.InterOpThreads)
	}
	options.SetGraphOptimizationLevel(ort.GraphOptimizationLevelEnableExtended)

	inputName := cfg.InputName
	if inputName == "" {
		inputName = "images"
	}
	outputName := cfg.OutputName
	if outputName == "" {
		outputName = "output0"
	}

	session, err := ort.NewAdvancedSession(
		cfg.ModelPath,
		[]string{inputName},
		[]string{outputName},
		[]ort.ArbitraryTensor{inputTensor},
		[]ort.ArbitraryTensor{outputTensor},
		options,
	)
	if err != nil {
		inputTensor.Destroy()
		outputTensor.Destroy()
		return nil, errors.Wrapf(err, "failed to load model %q", cfg.ModelPath)
	}

	names := make([]string, len(cfg.Names))
	copy(names, cfg.Names)

	return &ONNX{
		session: session,
		input:   inputTensor,
		output:  outputTensor,
		names:   names,
		inputW:  inputW,
		inputH:  inputH,
		classes: classes,
		cells:   cells,
	}, nil
}

// InputSize returns the network input resolution.
func (o *ONNX) InputSize() (int, int) { return o.inputW, o.inputH }

// Classes returns the class labels in id order.
func (o *ONNX) Classes() []string { return o.names }

// Infer runs the model on img and returns thresholded, de-duplicated
// detections in img's own pixel coordinates.
func (o *ONNX) Infer(ctx context.Context, img image.Image, opts inference.InvokeOptions) ([]detection.Detection, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return nil, errors.New("detector is closed")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	fitted, lb := images.LetterboxFit(img, o.inputW, o.inputH)
	writePlanes(fitted, o.input.GetData(), o.inputW, o.inputH)

	if err := o.session.Run(); err != nil {
		return nil, errors.Wrap(err, "model execution failed")
	}

	dets := DecodeYOLO(o.output.GetData(), o.classes, o.cells, lb, opts.Threshold)
	return postprocess.ApplyGreedyNMS(dets, postprocess.NMSConfig{
		IoUThreshold: opts.NMSThreshold,
		ClassAware:   true,
	}), nil
}

// Close destroys the session and its tensors. Closing twice is harmless.
func (o *ONNX) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return nil
	}
	o.closed = true
	o.input.Destroy()
	o.output.Destroy()
	o.session.Destroy()
	return nil
}

// writePlanes fills an NCHW float tensor from an image already sized to the
// network input, normalizing channels to [0,1].
func writePlanes(img image.Image, data []float32, w, h int) {
	channel := w * h
	red := data[0:channel]
	green := data[channel : 2*channel]
	blue := data[2*channel : 3*channel]

	i := 0
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, g, b, _ := img.At(x, y).RGBA()
			red[i] = float32(r>>8) / 255.0
			green[i] = float32(g>>8) / 255.0
			blue[i] = float32(b>>8) / 255.0
			i++
		}
	}
}

// DecodeYOLO converts a raw YOLO output tensor into detections in source
// image coordinates.
//
// The tensor is laid out column-major over cells: row 0..3 hold the box
// centre and size in network pixels, row 4+c holds the confidence of class
// c. Every class at or above the threshold is recorded in the probability
// map; cells whose best class is below the threshold produce nothing. Boxes
// are mapped back through the letterbox into source coordinates and
// zero-area boxes are discarded.
func DecodeYOLO(output []float32, classes, cells int, lb images.Letterbox, threshold float32) []detection.Detection {
	var dets []detection.Detection

	for idx := 0; idx < cells; idx++ {
		var probs map[int]float32
		best := float32(0)
		for c := 0; c < classes; c++ {
			p := output[(4+c)*cells+idx]
			if p < threshold {
				continue
			}
			if probs == nil {
				probs = make(map[int]float32, 2)
			}
			probs[c] = p
			if p > best {
				best = p
			}
		}
		if probs == nil {
			continue
		}

		xc := output[idx]
		yc := output[cells+idx]
		w := output[2*cells+idx]
		h := output[3*cells+idx]

		r := images.Rect{
			X1: int(xc - w/2),
			Y1: int(yc - h/2),
			X2: int(xc + w/2),
			Y2: int(yc + h/2),
		}
		r = lb.ToSource(r)
		if r.Empty() {
			continue
		}

		d := detection.Detection{
			Rect:          r,
			Probabilities: probs,
			Tile:          0,
		}
		d.RefreshBest()
		dets = append(dets, d)
	}

	return dets
}
