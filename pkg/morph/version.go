package morph

import (
	"github.com/blang/semver/v4"

	"github.com/lk2023060901/morph/pkg/util/merr"
)

// MetadataVersion 为元数据容器的格式版本。
// 容器中记录的版本与此不一致时，说明进程中加载了不兼容的实现。
const MetadataVersion = "2.0.0"

var metadataVersion = semver.MustParse(MetadataVersion)

func checkVersion(owner string, found string) error {
	v, err := semver.Parse(found)
	if err != nil || !v.EQ(metadataVersion) {
		return merr.WrapErrVersionMismatch(owner, found, MetadataVersion)
	}
	return nil
}
