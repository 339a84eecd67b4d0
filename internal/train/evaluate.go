package train

import (
	"context"

	"github.com/born-ml/attnet/internal/data"
	"github.com/born-ml/attnet/internal/nn"
	"github.com/born-ml/attnet/internal/tensor"
)

// Evaluate runs model over every batch of loader in eval mode and returns
// the mean batch loss and the fraction of correctly classified examples.
// Parameters and BatchNorm running statistics are left untouched; the
// model's previous mode is restored before returning.
//
// The backend must not be recording a tape.
func Evaluate[B tensor.Backend](ctx context.Context, model *nn.Model[B], loader *data.Loader) (loss, accuracy float64, err error) {
	wasTraining := model.Training()
	model.SetTraining(false)
	defer model.SetTraining(wasTraining)

	var sum float64
	var batches, correct, examples int
	for batch, berr := range loader.Batches(ctx, 0) {
		if berr != nil {
			return 0, 0, berr
		}
		logits := model.Forward(tensor.New(batch.Images, model.Backend()))
		sum += float64(model.Loss(logits, batch.Labels).Item())
		correct += nn.Correct(logits, batch.Labels)
		batches++
		examples += batch.Size()
	}
	return mean(sum, batches), mean(float64(correct), examples), nil
}
