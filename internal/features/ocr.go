package features

import (
	"fmt"
	"regexp"
	"strings"

	ort "github.com/yalue/onnxruntime_go"
)

// recognizer charset: CTC blank at index 0.
const ocrCharset = " abcdefghijklmnopqrstuvwxyz0123456789-"

// TextRecognizer reads text from photos using an ONNX CRNN model with
// greedy CTC decoding. It is deliberately simple: lost-and-found photos
// mostly carry short printed strings (brands, plates, serials).
type TextRecognizer struct {
	session      *ort.AdvancedSession
	inputTensor  *ort.Tensor[float32]
	outputTensor *ort.Tensor[float32]
	inputW       int
	inputH       int
	seqLen       int
}

// NewTextRecognizer loads the ONNX text recognition model.
func NewTextRecognizer(modelPath string) (*TextRecognizer, error) {
	inputW, inputH := 320, 48
	seqLen := 80

	inputShape := ort.NewShape(1, 3, int64(inputH), int64(inputW))
	inputTensor, err := ort.NewEmptyTensor[float32](inputShape)
	if err != nil {
		return nil, fmt.Errorf("create input tensor: %w", err)
	}

	outputShape := ort.NewShape(1, int64(seqLen), int64(len(ocrCharset)+1))
	outputTensor, err := ort.NewEmptyTensor[float32](outputShape)
	if err != nil {
		return nil, fmt.Errorf("create output tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(modelPath,
		[]string{"input"},
		[]string{"logits"},
		[]ort.Value{inputTensor},
		[]ort.Value{outputTensor},
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("create recognizer session: %w", err)
	}

	return &TextRecognizer{
		session:      session,
		inputTensor:  inputTensor,
		outputTensor: outputTensor,
		inputW:       inputW,
		inputH:       inputH,
		seqLen:       seqLen,
	}, nil
}

// Recognize runs text recognition on preprocessed image data and returns
// the raw decoded string (may be empty when no text is visible).
func (r *TextRecognizer) Recognize(imgData []float32) (string, error) {
	inputSlice := r.inputTensor.GetData()
	copy(inputSlice, imgData)

	if err := r.session.Run(); err != nil {
		return "", fmt.Errorf("run recognizer: %w", err)
	}

	return ctcDecode(r.outputTensor.GetData(), r.seqLen, len(ocrCharset)+1), nil
}

// InputSize returns the expected input dimensions.
func (r *TextRecognizer) InputSize() (int, int) {
	return r.inputW, r.inputH
}

func (r *TextRecognizer) Close() {
	if r.session != nil {
		r.session.Destroy()
	}
	if r.inputTensor != nil {
		r.inputTensor.Destroy()
	}
	if r.outputTensor != nil {
		r.outputTensor.Destroy()
	}
}

// ctcDecode performs greedy CTC decoding: argmax per timestep, collapse
// repeats, drop blanks (class 0).
func ctcDecode(logits []float32, seqLen, numClasses int) string {
	var sb strings.Builder
	prev := 0
	for t := 0; t < seqLen; t++ {
		best := 0
		bestVal := float32(-1e30)
		for c := 0; c < numClasses; c++ {
			if v := logits[t*numClasses+c]; v > bestVal {
				bestVal = v
				best = c
			}
		}
		if best != 0 && best != prev {
			sb.WriteByte(ocrCharset[best-1])
		}
		prev = best
	}
	return strings.TrimSpace(sb.String())
}

var tokenSplit = regexp.MustCompile(`[^a-z0-9]+`)

// NormalizeTokens lower-cases text, strips punctuation and splits it
// into the token set used by text scoring. Tokens shorter than two
// characters are dropped; duplicates are removed preserving order.
func NormalizeTokens(text string) []string {
	parts := tokenSplit.Split(strings.ToLower(text), -1)
	seen := make(map[string]struct{}, len(parts))
	var tokens []string
	for _, p := range parts {
		if len(p) < 2 {
			continue
		}
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		tokens = append(tokens, p)
	}
	return tokens
}

var (
	// plates: 5-8 chars mixing letters and digits, e.g. "ab123cd".
	platePattern = regexp.MustCompile(`^[a-z0-9]{5,8}$`)
	// serials: 8+ alphanumeric chars containing at least one digit.
	serialPattern = regexp.MustCompile(`^[a-z0-9-]{8,}$`)
	hasDigit      = regexp.MustCompile(`[0-9]`)
	hasLetter     = regexp.MustCompile(`[a-z]`)
)

// ExtractIdentifiers picks out tokens that look like structured
// identifiers (license plates, serial numbers). A verbatim identifier
// match between two photos is the strongest text evidence.
func ExtractIdentifiers(tokens []string) []string {
	var ids []string
	for _, t := range tokens {
		if !hasDigit.MatchString(t) || !hasLetter.MatchString(t) {
			continue
		}
		if serialPattern.MatchString(t) || platePattern.MatchString(t) {
			ids = append(ids, t)
		}
	}
	return ids
}

// IsSerialLike reports whether an identifier looks like a serial number
// rather than a license plate.
func IsSerialLike(id string) bool {
	return len(id) >= 8
}
