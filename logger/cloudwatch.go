package logger

import (
	"context"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
)

var cwClient *cloudwatch.Client
var cwNamespace = "TradeLink"

// InitCloudWatch initialises the CloudWatch client using the provided region
// and namespace. If region is empty it falls back to the AWS_REGION
// environment variable. When the client cannot be created the function logs a
// warning and metrics publishing remains disabled.
func InitCloudWatch(region, namespace string) {
	log := GetLogger().WithComponent("cloudwatch")

	if region == "" {
		region = os.Getenv("AWS_REGION")
	}

	ctx := context.Background()
	opts := []func(*config.LoadOptions) error{}
	if region != "" {
		opts = append(opts, config.WithRegion(region))
	}

	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		log.WithError(err).Warn("failed to load AWS configuration; CloudWatch metrics disabled")
		return
	}

	cwClient = cloudwatch.NewFromConfig(cfg)

	if namespace != "" {
		cwNamespace = namespace
	}

	log.WithFields(Fields{"region": region, "namespace": cwNamespace}).Info("initialized CloudWatch client")
}

// publishMetrics sends the provided metric data to CloudWatch when the client
// has been initialised.
func publishMetrics(ctx context.Context, data []cwtypes.MetricDatum) {
	log := GetLogger().WithComponent("cloudwatch")
	if cwClient == nil {
		log.Debug("CloudWatch client not initialized; skipping metric publish")
		return
	}

	if len(data) == 0 {
		log.Debug("no metric data to publish")
		return
	}

	if _, err := cwClient.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
		Namespace:  aws.String(cwNamespace),
		MetricData: data,
	}); err != nil {
		log.WithError(err).Warn("failed to publish CloudWatch metrics")
		return
	}

	names := make([]string, 0, len(data))
	for _, datum := range data {
		if datum.MetricName != nil {
			names = append(names, *datum.MetricName)
		}
	}

	log.WithField("metrics", strings.Join(names, ",")).Debug("published metrics to CloudWatch")
}
