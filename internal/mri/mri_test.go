package mri

import (
	"bytes"
	"context"
	"encoding/binary"
	"hash/crc32"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"neurod/internal/apperr"
)

func solidImage(w, h int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func testService(t *testing.T) *Service {
	t.Helper()
	net := NewResNet18()
	net.Randomize(rand.New(rand.NewSource(5)))
	svc, err := NewFromStateDict(net.Export(), Config{InputSize: 32})
	require.NoError(t, err)
	return svc
}

// Resampling may round a channel by one level, hence the tolerance.
func TestPreprocessNormalises(t *testing.T) {
	img := solidImage(50, 40, color.RGBA{R: 255, G: 0, B: 128, A: 255})
	x := Preprocess(img, 8)
	require.Len(t, x, 3*64)
	assert.InDelta(t, (1-0.485)/0.229, x[0], 0.03)
	assert.InDelta(t, (0-0.456)/0.224, x[64], 0.03)
	assert.InDelta(t, (128.0/255-0.406)/0.225, x[128+63], 0.03)
}

func TestDecodeFormats(t *testing.T) {
	img := solidImage(4, 4, color.Gray{Y: 90})
	_, err := Decode(encodePNG(t, img), 0)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, nil))
	_, err = Decode(buf.Bytes(), 0)
	require.NoError(t, err)

	_, err = Decode([]byte("not an image"), 0)
	assert.True(t, apperr.IsInvalidInput(err))
	_, err = Decode(nil, 0)
	assert.True(t, apperr.IsInvalidInput(err))
}

// withDimensions rewrites the IHDR of an encoded PNG to claim w x h pixels.
func withDimensions(t *testing.T, data []byte, w, h uint32) []byte {
	t.Helper()
	out := append([]byte(nil), data...)
	require.Equal(t, "IHDR", string(out[12:16]))
	binary.BigEndian.PutUint32(out[16:20], w)
	binary.BigEndian.PutUint32(out[20:24], h)
	binary.BigEndian.PutUint32(out[29:33], crc32.ChecksumIEEE(out[12:29]))
	return out
}

func TestDecodeRejectsOversizedHeader(t *testing.T) {
	huge := withDimensions(t, encodePNG(t, solidImage(1, 1, color.Gray{Y: 1})), 30000, 30000)
	_, err := Decode(huge, 0)
	require.Error(t, err)
	assert.True(t, apperr.IsInvalidInput(err))
	assert.Contains(t, err.Error(), "30000x30000")

	img := encodePNG(t, solidImage(20, 10, color.Gray{Y: 1}))
	_, err = Decode(img, 199)
	assert.True(t, apperr.IsInvalidInput(err))
	_, err = Decode(img, 200)
	assert.NoError(t, err)
}

func TestServiceRejectsOversizedImage(t *testing.T) {
	svc := testService(t)
	huge := withDimensions(t, encodePNG(t, solidImage(1, 1, color.Gray{Y: 1})), 30000, 30000)
	_, err := svc.Predict(context.Background(), huge)
	assert.True(t, apperr.IsInvalidInput(err))
	assert.EqualValues(t, 0, svc.Info().Predictions)
}

// Transparent pixels keep their straight colour, as an RGB conversion does.
// Resampling may round a channel by one level.
func TestPreprocessDropsAlpha(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 8, 8))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = 200, 100, 50, 0
	}
	decoded, err := Decode(encodePNG(t, img), 0)
	require.NoError(t, err)
	x := Preprocess(decoded, 4)
	assert.InDelta(t, (200.0/255-0.485)/0.229, x[0], 0.02)
	assert.InDelta(t, (100.0/255-0.456)/0.224, x[16], 0.02)
	assert.InDelta(t, (50.0/255-0.406)/0.225, x[32+15], 0.02)

	half := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	for i := 0; i < len(half.Pix); i += 4 {
		half.Pix[i], half.Pix[i+1], half.Pix[i+2], half.Pix[i+3] = 255, 0, 0, 128
	}
	y := Preprocess(half, 2)
	assert.InDelta(t, (1-0.485)/0.229, y[0], 0.02)
}

func TestAllowedFile(t *testing.T) {
	for _, name := range []string{"scan.jpg", "scan.JPEG", "a.b.png"} {
		assert.True(t, AllowedFile(name), name)
	}
	for _, name := range []string{"scan.gif", "scan", "png", "scan.png.exe"} {
		assert.False(t, AllowedFile(name), name)
	}
}

func TestResNetStateDictLayout(t *testing.T) {
	sd := NewResNet18().Export()
	assert.Len(t, sd, 102)
	for _, k := range []string{
		"conv1.weight", "bn1.running_var", "layer1.1.conv2.weight",
		"layer2.0.downsample.0.weight", "layer4.0.downsample.1.running_mean", "fc.bias",
	} {
		assert.Contains(t, sd, k)
	}
	assert.NotContains(t, sd, "layer1.0.downsample.0.weight")
	assert.NotContains(t, sd, "conv1.bias")
	assert.Equal(t, []int{NumClasses, 512}, sd["fc.weight"].Shape)
}

func TestResNetStrictLoad(t *testing.T) {
	sd := NewResNet18().Export()
	delete(sd, "layer3.0.downsample.0.weight")
	err := NewResNet18().LoadStateDict(sd)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "layer3.0.downsample.0.weight")

	sd = NewResNet18().Export()
	sd["layer1.0.bn1.num_batches_tracked"] = sd["fc.bias"]
	assert.NoError(t, NewResNet18().LoadStateDict(sd))
}

func TestServicePredict(t *testing.T) {
	svc := testService(t)
	data := encodePNG(t, solidImage(64, 64, color.Gray{Y: 120}))
	res, err := svc.Predict(context.Background(), data)
	require.NoError(t, err)
	assert.Contains(t, ClassNames[:], res.Prediction)
	assert.Equal(t, Describe(res.Prediction), res.Meaning)

	again, err := svc.Predict(context.Background(), data)
	require.NoError(t, err)
	assert.Equal(t, res, again)
	assert.EqualValues(t, 2, svc.Info().Predictions)

	_, err = svc.Predict(context.Background(), []byte("GIF89a"))
	assert.True(t, apperr.IsInvalidInput(err))
}

func TestServiceRejectsTinyInput(t *testing.T) {
	_, err := NewFromStateDict(NewResNet18().Export(), Config{InputSize: 16})
	assert.Error(t, err)
}

func TestDescriptions(t *testing.T) {
	assert.Equal(t, "No visible signs of Alzheimer's disease.", Result(2).Meaning)
	assert.Equal(t, "Mild Impairment", Result(0).Prediction)
	assert.Equal(t, "No description available.", Describe("Severe"))
}
