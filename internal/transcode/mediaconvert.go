package transcode

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/mediaconvert"
	"github.com/aws/aws-sdk-go-v2/service/mediaconvert/types"
)

const (
	// hlsSegmentSeconds is the segment duration for produced playlists.
	hlsSegmentSeconds = 6

	// manifestBaseName is the destination basename; MediaConvert appends
	// ".m3u8" for the master playlist.
	manifestBaseName = "index"
)

// MediaConvertFactory builds AWS MediaConvert clients per tenant credential.
type MediaConvertFactory struct {
	// Endpoint overrides the account-specific MediaConvert endpoint.
	Endpoint string
}

func (f *MediaConvertFactory) New(ctx context.Context, cfg Config) (Client, error) {
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	opts := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = f.Endpoint
	}
	var mcOpts []func(*mediaconvert.Options)
	if endpoint != "" {
		mcOpts = append(mcOpts, func(o *mediaconvert.Options) {
			o.BaseEndpoint = aws.String(endpoint)
		})
	}
	return &mediaConvertClient{client: mediaconvert.NewFromConfig(awsCfg, mcOpts...)}, nil
}

type mediaConvertClient struct {
	client *mediaconvert.Client
}

// SubmitJob creates a single-rendition H.264/AAC HLS job. The returned
// manifest key is OutputPrefix + "index.m3u8", which is where MediaConvert
// writes the master playlist for the configured destination.
func (c *mediaConvertClient) SubmitJob(ctx context.Context, input SubmitInput) (Submission, error) {
	if input.Bucket == "" || input.InputKey == "" || input.OutputPrefix == "" {
		return Submission{}, errors.New("bucket, inputKey, and outputPrefix are required")
	}
	if input.RoleARN == "" {
		return Submission{}, errors.New("transcode role arn is required")
	}
	prefix := input.OutputPrefix
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	destination := fmt.Sprintf("s3://%s/%s%s", input.Bucket, prefix, manifestBaseName)

	job, err := c.client.CreateJob(ctx, &mediaconvert.CreateJobInput{
		Role: aws.String(input.RoleARN),
		Settings: &types.JobSettings{
			Inputs: []types.Input{{
				FileInput:      aws.String(fmt.Sprintf("s3://%s/%s", input.Bucket, input.InputKey)),
				TimecodeSource: types.InputTimecodeSourceZerobased,
				VideoSelector: &types.VideoSelector{
					Rotate: types.InputRotateAuto,
				},
				AudioSelectors: map[string]types.AudioSelector{
					"Audio Selector 1": {DefaultSelection: types.AudioDefaultSelectionDefault},
				},
			}},
			OutputGroups: []types.OutputGroup{{
				Name: aws.String("HLS"),
				OutputGroupSettings: &types.OutputGroupSettings{
					Type: types.OutputGroupTypeHlsGroupSettings,
					HlsGroupSettings: &types.HlsGroupSettings{
						Destination:      aws.String(destination),
						SegmentLength:    aws.Int32(hlsSegmentSeconds),
						MinSegmentLength: aws.Int32(0),
					},
				},
				Outputs: []types.Output{{
					NameModifier: aws.String("_720p"),
					ContainerSettings: &types.ContainerSettings{
						Container: types.ContainerTypeM3u8,
					},
					VideoDescription: &types.VideoDescription{
						Height: aws.Int32(720),
						CodecSettings: &types.VideoCodecSettings{
							Codec: types.VideoCodecH264,
							H264Settings: &types.H264Settings{
								RateControlMode: types.H264RateControlModeQvbr,
								MaxBitrate:      aws.Int32(5_000_000),
								QvbrSettings: &types.H264QvbrSettings{
									QvbrQualityLevel: aws.Int32(7),
								},
							},
						},
					},
					AudioDescriptions: []types.AudioDescription{{
						CodecSettings: &types.AudioCodecSettings{
							Codec: types.AudioCodecAac,
							AacSettings: &types.AacSettings{
								Bitrate:    aws.Int32(96_000),
								CodingMode: types.AacCodingModeCodingMode20,
								SampleRate: aws.Int32(48_000),
							},
						},
					}},
				}},
			}},
		},
	})
	if err != nil {
		return Submission{}, fmt.Errorf("create transcode job: %w", err)
	}
	if job.Job == nil || job.Job.Id == nil {
		return Submission{}, errors.New("transcode job created without an id")
	}
	return Submission{
		JobID:       *job.Job.Id,
		ManifestKey: prefix + manifestBaseName + ".m3u8",
	}, nil
}

func (c *mediaConvertClient) GetJob(ctx context.Context, jobID string) (JobStatus, error) {
	resp, err := c.client.GetJob(ctx, &mediaconvert.GetJobInput{Id: aws.String(jobID)})
	if err != nil {
		var notFound *types.NotFoundException
		if errors.As(err, &notFound) {
			return JobStatus{}, ErrJobNotFound
		}
		return JobStatus{}, fmt.Errorf("get transcode job %s: %w", jobID, err)
	}
	status := JobStatus{JobID: jobID}
	if resp.Job == nil {
		return status, nil
	}
	switch resp.Job.Status {
	case types.JobStatusSubmitted:
		status.State = StateSubmitted
	case types.JobStatusProgressing:
		status.State = StateProgressing
	case types.JobStatusComplete:
		status.State = StateComplete
	case types.JobStatusError:
		status.State = StateError
	case types.JobStatusCanceled:
		status.State = StateCanceled
	default:
		status.State = StateSubmitted
	}
	if resp.Job.ErrorMessage != nil {
		status.ErrorMessage = *resp.Job.ErrorMessage
	}
	return status, nil
}

var _ Factory = (*MediaConvertFactory)(nil)
